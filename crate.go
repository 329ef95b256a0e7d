package cargomcp

import (
	"context"
	"strings"
)

// CrateSource is where a crate's sources come from.
type CrateSource string

// Crate sources.
const (
	SourceRegistry CrateSource = "registry"
	SourcePath     CrateSource = "path"
	SourceGit      CrateSource = "git"
)

// CrateDescriptor describes the root crate or one of its dependencies.
type CrateDescriptor struct {
	Name     string      `json:"name"`
	Version  string      `json:"version"`
	Source   CrateSource `json:"source"`
	SourceID string      `json:"sourceId,omitempty"`
	Features []string    `json:"features"`

	// DocName is the library target name as rustdoc uses it for the crate's
	// documentation directory and path prefix.
	DocName string `json:"docName"`

	// Member is set for workspace members.
	Member bool `json:"member"`
}

// ID returns the crate id in name@version form.
func (c *CrateDescriptor) ID() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + "@" + c.Version
}

// ParseCrateID splits a crate id of the form name@version or name.
func ParseCrateID(id string) (name, version string) {
	id = strings.TrimSpace(id)
	name, version, _ = strings.Cut(id, "@")
	return name, version
}

// DocNameOf returns the rustdoc directory name for a crate or target name.
func DocNameOf(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Metadata is the resolved package graph of a project.
type Metadata struct {
	// Crates holds every package in the resolved graph, members first.
	Crates []CrateDescriptor

	// RootCrate is the DocName of the root package. It is empty for virtual
	// workspaces that have no root package.
	RootCrate string

	WorkspaceRoot string
	TargetDir     string
}

// MetadataReader reads the package graph of a project without building it.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, root ProjectRoot) (*Metadata, error)
}
