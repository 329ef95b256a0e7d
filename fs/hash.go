package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/cargomcp"
)

// Ensure Hasher implements cargomcp.ManifestHasher at compile time.
var _ cargomcp.ManifestHasher = (*Hasher)(nil)

// Hasher hashes Cargo.toml and Cargo.lock with xxhash. For a workspace
// member the manifest and lockfile of the enclosing workspace are hashed
// as well, since the lockfile and shared dependencies live there.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashManifest implements cargomcp.ManifestHasher. A missing lockfile
// hashes differently from an empty one.
func (h *Hasher) HashManifest(ctx context.Context, root cargomcp.ProjectRoot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d := xxhash.New()
	if err := hashFile(d, root.ManifestPath(), true); err != nil {
		return "", err
	}
	if err := hashFile(d, root.LockfilePath(), false); err != nil {
		return "", err
	}

	ws, err := enclosingWorkspace(root)
	if err != nil {
		return "", err
	}
	if ws != "" {
		_, _ = d.WriteString("\x00workspace\x00" + ws.Dir() + "\x00")
		if err := hashFile(d, ws.ManifestPath(), true); err != nil {
			return "", err
		}
		if err := hashFile(d, ws.LockfilePath(), false); err != nil {
			return "", err
		}
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}

// enclosingWorkspace returns the nearest ancestor of root whose manifest
// declares a workspace, or "" if there is none.
func enclosingWorkspace(root cargomcp.ProjectRoot) (cargomcp.ProjectRoot, error) {
	dir := filepath.Clean(root.Dir())
	for parent := filepath.Dir(dir); parent != dir; dir, parent = parent, filepath.Dir(parent) {
		manifest := filepath.Join(parent, cargomcp.ManifestName)
		if !isFile(manifest) {
			continue
		}
		ok, err := declaresWorkspace(manifest)
		if err != nil {
			return "", err
		}
		if ok {
			return cargomcp.ProjectRoot(parent), nil
		}
	}
	return "", nil
}

func hashFile(d *xxhash.Digest, path string, required bool) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		_, _ = d.WriteString("\x00absent\x00")
		return nil
	} else if errors.Is(err, os.ErrNotExist) {
		return cargomcp.Errorf(cargomcp.ENOTPROJECT, "%s not found", path)
	} else if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(d, f)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	// Terminate each file with its length so bytes cannot shift between files.
	_, _ = d.WriteString("\x00" + strconv.FormatInt(n, 10) + "\x00")
	return nil
}
