// Package fs provides filesystem access for project discovery, manifest
// hashing and documentation export.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fwojciec/cargomcp"
)

// Ensure Locator implements cargomcp.ProjectLocator at compile time.
var _ cargomcp.ProjectLocator = (*Locator)(nil)

// workspaceHeader matches a [workspace] table or any of its subtables.
var workspaceHeader = regexp.MustCompile(`(?m)^\s*\[workspace(\]|\.)`)

// Locator finds Cargo projects by walking up the directory tree.
type Locator struct{}

// NewLocator creates a new Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Locate implements cargomcp.ProjectLocator.
func (l *Locator) Locate(ctx context.Context, dir string, scope cargomcp.Scope) (cargomcp.ProjectRoot, error) {
	if dir == "" {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "project directory required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "invalid project directory %q: %s", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", cargomcp.Errorf(cargomcp.EINVALID, "project directory %q does not exist", dir)
		}
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "project directory %q is not a directory", dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	var manifests []string
	for cur := abs; ; {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if isFile(filepath.Join(cur, cargomcp.ManifestName)) {
			manifests = append(manifests, cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	if len(manifests) == 0 {
		return "", cargomcp.Errorf(cargomcp.ENOTPROJECT, "no %s found in %s or any parent directory", cargomcp.ManifestName, abs)
	}
	if scope == cargomcp.ScopeProject {
		return cargomcp.ProjectRoot(manifests[0]), nil
	}

	var workspaces []string
	for _, m := range manifests {
		ok, err := declaresWorkspace(filepath.Join(m, cargomcp.ManifestName))
		if err != nil {
			return "", err
		}
		if ok {
			workspaces = append(workspaces, m)
		}
	}

	switch len(workspaces) {
	case 0:
		return cargomcp.ProjectRoot(manifests[0]), nil
	case 1:
		return cargomcp.ProjectRoot(workspaces[0]), nil
	default:
		return "", cargomcp.Errorf(cargomcp.EAMBIGUOUS, "%s is enclosed by more than one workspace: %s and %s", abs, workspaces[0], workspaces[1])
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func declaresWorkspace(manifest string) (bool, error) {
	data, err := os.ReadFile(manifest)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", manifest, err)
	}
	return workspaceHeader.Match(data), nil
}
