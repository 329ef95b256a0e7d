package cargomcp

import (
	"context"
	"path/filepath"
)

// ManifestName is the file name that marks a directory as a Cargo project.
const ManifestName = "Cargo.toml"

// LockfileName is the file name of the Cargo lockfile next to a manifest.
const LockfileName = "Cargo.lock"

// ProjectRoot is the validated absolute directory of a Cargo project.
// A ProjectRoot is only produced by a ProjectLocator and is never mutated.
type ProjectRoot string

// Dir returns the project directory.
func (r ProjectRoot) Dir() string {
	return string(r)
}

// ManifestPath returns the path of the project's Cargo.toml.
func (r ProjectRoot) ManifestPath() string {
	return filepath.Join(string(r), ManifestName)
}

// LockfilePath returns the path of the project's Cargo.lock.
func (r ProjectRoot) LockfilePath() string {
	return filepath.Join(string(r), LockfileName)
}

// String returns the project directory.
func (r ProjectRoot) String() string {
	return string(r)
}

// Scope selects which enclosing manifest a project lookup resolves to.
type Scope int

const (
	// ScopeProject resolves to the nearest enclosing manifest.
	ScopeProject Scope = iota

	// ScopeWorkspace prefers the enclosing workspace root over a member's
	// own manifest.
	ScopeWorkspace
)

// ProjectLocator resolves user-supplied directories to project roots.
type ProjectLocator interface {
	// Locate walks upward from dir looking for a Cargo manifest.
	// Returns ENOTPROJECT if no manifest encloses dir and EAMBIGUOUS if a
	// workspace-scoped lookup finds more than one enclosing workspace.
	Locate(ctx context.Context, dir string, scope Scope) (ProjectRoot, error)
}
