package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/cargomcp"
)

// PagePath converts a documentation physical path to a relative markdown
// file path.
// Example: mycrate/util/struct.Helper.html → mycrate/util/struct.Helper.md
func PagePath(physicalPath string) (string, error) {
	p := filepath.ToSlash(filepath.Clean(physicalPath))
	if p == "." || p == "" || strings.HasPrefix(p, "../") || p == ".." || filepath.IsAbs(physicalPath) {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "invalid page path %q", physicalPath)
	}
	p = strings.TrimSuffix(p, ".html")
	return filepath.FromSlash(p + ".md"), nil
}

// FormatPage formats a rendered page with YAML frontmatter.
func FormatPage(page *cargomcp.Page) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("crate: ")
	b.WriteString(page.Entry.Crate)
	b.WriteString("\npath: ")
	b.WriteString(page.Entry.LogicalPath)
	b.WriteString("\nkind: ")
	b.WriteString(string(page.Entry.Kind))
	b.WriteString("\nsource: ")
	b.WriteString(page.Entry.PhysicalPath)
	b.WriteString("\nindex: ")
	b.WriteString(page.Version)
	b.WriteString("\n---\n\n")
	b.WriteString(page.Markdown)
	return b.String()
}

// Writer writes rendered pages as markdown files to a directory.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer that writes to the given base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// WritePage writes a page to disk and returns the file path.
func (w *Writer) WritePage(ctx context.Context, page *cargomcp.Page) (string, error) {
	return writePage(w.baseDir, page)
}

func writePage(baseDir string, page *cargomcp.Page) (string, error) {
	relPath, err := PagePath(page.Entry.PhysicalPath)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(baseDir, relPath)

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}

	return fullPath, os.WriteFile(fullPath, []byte(FormatPage(page)), 0644)
}
