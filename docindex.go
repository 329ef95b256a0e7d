package cargomcp

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CrateList is the crate graph of a project.
type CrateList struct {
	Root      ProjectRoot       `json:"projectRoot"`
	RootCrate string            `json:"rootCrate,omitempty"`
	Crates    []CrateDescriptor `json:"crates"`
	Version   string            `json:"version"`
}

// Overview is the crate-level summary of one crate.
type Overview struct {
	Crate        CrateDescriptor `json:"crate"`
	Markdown     string          `json:"markdown"`
	PhysicalPath string          `json:"physicalPath"`
	Version      string          `json:"version"`
}

// SymbolResult is the answer to a symbol lookup.
type SymbolResult struct {
	Query      string        `json:"query"`
	Normalized string        `json:"normalized"`
	Matches    []SymbolMatch `json:"matches"`
	Total      int           `json:"total"`
	Version    string        `json:"version"`
}

// Page is one rendered documentation page.
type Page struct {
	Entry    SymbolEntry `json:"entry"`
	Markdown string      `json:"markdown"`
	Sections []Section   `json:"sections"`
	Version  string      `json:"version"`
}

// DocIndexService answers documentation queries against the current index
// of a project, rebuilding it when the manifest or lockfile changes.
type DocIndexService interface {
	// Refresh rebuilds the index unconditionally.
	Refresh(ctx context.Context, root ProjectRoot) (IndexVersion, error)

	// ListCrates returns the crate graph. It does not require generated
	// documentation.
	ListCrates(ctx context.Context, root ProjectRoot) (*CrateList, error)

	// Overview returns the crate-level documentation of a crate given as
	// name or name@version. Returns EUNKNOWNCRATE if it is not in the graph.
	Overview(ctx context.Context, root ProjectRoot, crate string) (*Overview, error)

	// FindSymbol performs an exact and then a prefix lookup of a logical
	// path. Returns EUNAVAILABLE when no page manifest was generated.
	FindSymbol(ctx context.Context, root ProjectRoot, query string, opts FindOptions) (*SymbolResult, error)

	// GetDocumentation renders the page at a physical path previously
	// returned by FindSymbol or Overview. Returns ESTALE if the path is not
	// part of the current index.
	GetDocumentation(ctx context.Context, root ProjectRoot, physicalPath string) (*Page, error)
}

// FindOptions tunes a symbol lookup.
type FindOptions struct {
	// Limit caps the number of matches. Zero means no limit.
	Limit int

	// Refresh forces an index rebuild before the lookup.
	Refresh bool
}

// CrateDocs is what the documentation reader found for one crate.
type CrateDocs struct {
	// Pages includes the crate root page and module pages. Empty when the
	// crate has no generated documentation.
	Pages []ManifestPage

	// Manifest is set when the crate's page manifest was present.
	Manifest bool
}

// DocReader reads generated documentation from disk.
// Physical paths are relative to the documentation root directory.
type DocReader interface {
	// ReadCrate enumerates the documented pages of a crate.
	ReadCrate(ctx context.Context, docDir string, crate CrateDescriptor) (*CrateDocs, error)

	// SourceAnchor returns the source link of an item page, or "" if it has none.
	SourceAnchor(ctx context.Context, docDir, physicalPath string) (string, error)

	// ReadOverview returns the HTML of the crate docblock on a crate root page.
	ReadOverview(ctx context.Context, docDir, physicalPath string) (string, error)

	// ReadContent returns the HTML of the main content of a page.
	ReadContent(ctx context.Context, docDir, physicalPath string) (string, error)
}

// SnapshotStore persists index snapshots between server runs.
type SnapshotStore interface {
	// FindSnapshot returns the stored snapshot for root and hash.
	// Returns ENOTFOUND if there is none.
	FindSnapshot(ctx context.Context, root ProjectRoot, hash string) (*IndexSnapshot, error)

	// SaveSnapshot stores a snapshot, replacing any previous snapshot of
	// the same project.
	SaveSnapshot(ctx context.Context, snap *IndexSnapshot) error

	// DeleteSnapshots removes every stored snapshot of a project.
	// Returns ENOTFOUND if the project has none.
	DeleteSnapshots(ctx context.Context, root ProjectRoot) error

	// FindSnapshots lists stored snapshots, most recent first.
	FindSnapshots(ctx context.Context, filter SnapshotFilter) ([]*SnapshotInfo, error)
}

// SnapshotInfo summarizes a stored snapshot without its pages.
type SnapshotInfo struct {
	Root      ProjectRoot `json:"projectRoot"`
	Hash      string      `json:"hash"`
	DocDir    string      `json:"docDir"`
	Crates    int         `json:"crates"`
	Pages     int         `json:"pages"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SnapshotFilter selects stored snapshots.
type SnapshotFilter struct {
	Root *ProjectRoot

	Limit  int
	Offset int
}

// ManifestHasher hashes the manifest and lockfile of a project.
type ManifestHasher interface {
	HashManifest(ctx context.Context, root ProjectRoot) (string, error)
}

// DocBuildError reports a documentation build that failed without
// generating the root crate's pages. Task holds the failed build.
type DocBuildError struct {
	Task *TaskSnapshot
}

// Error implements the error interface.
func (e *DocBuildError) Error() string {
	var errs []string
	for _, d := range e.Task.Diagnostics {
		if d.Severity != SeverityError {
			continue
		}
		errs = append(errs, FormatDiagnostic(d))
		if len(errs) == 5 {
			break
		}
	}
	msg := fmt.Sprintf("documentation build %s", e.Task.State)
	if e.Task.ExitCode != nil {
		msg += fmt.Sprintf(" with exit code %d", *e.Task.ExitCode)
	}
	if len(errs) > 0 {
		msg += ": " + strings.Join(errs, "; ")
	}
	return msg
}

// Unwrap exposes the failure as an internal application error.
func (e *DocBuildError) Unwrap() error {
	return &Error{Code: EINTERNAL, Message: e.Error()}
}
