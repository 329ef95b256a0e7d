package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fwojciec/cargomcp"
)

// ExportStore exports a set of pages with atomic update semantics.
// Pages are saved to a temporary directory, then moved atomically on Commit.
type ExportStore struct {
	baseDir string
	name    string
}

// NewExportStore creates a new ExportStore.
// Files are saved to baseDir/name.tmp and moved to baseDir/name on Commit.
func NewExportStore(baseDir, name string) *ExportStore {
	return &ExportStore{
		baseDir: baseDir,
		name:    name,
	}
}

func (s *ExportStore) tempDir() string {
	return filepath.Join(s.baseDir, s.name+".tmp")
}

// Dir returns the directory pages end up in after Commit.
func (s *ExportStore) Dir() string {
	return filepath.Join(s.baseDir, s.name)
}

// Save writes a page to the temporary directory.
func (s *ExportStore) Save(ctx context.Context, page *cargomcp.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := writePage(s.tempDir(), page)
	return err
}

// Commit replaces the export directory with the saved pages.
func (s *ExportStore) Commit() error {
	if err := os.MkdirAll(s.tempDir(), 0755); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir()); err != nil {
		return err
	}
	return os.Rename(s.tempDir(), s.Dir())
}

// Abort discards the saved pages.
func (s *ExportStore) Abort() error {
	return os.RemoveAll(s.tempDir())
}
