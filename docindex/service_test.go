package docindex_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/docindex"
	"github.com/fwojciec/cargomcp/mock"
	"github.com/fwojciec/cargomcp/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = cargomcp.ProjectRoot("/work/mycrate")

// fixture wires a Service to mocks whose answers can change between calls,
// standing in for edits to the manifest and regenerated documentation.
type fixture struct {
	svc    *docindex.Service
	target string

	mu       sync.Mutex
	hash     string
	pages    map[string][]cargomcp.ManifestPage
	manifest bool
	anchors  map[string]string
	docState cargomcp.TaskState
	anchored []string

	builds   atomic.Int32
	metadata atomic.Int32
	reads    atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		target:   filepath.Join(t.TempDir(), "target"),
		hash:     "h1",
		manifest: true,
		docState: cargomcp.TaskSucceeded,
		pages: map[string][]cargomcp.ManifestPage{
			"mycrate": {
				{Crate: "mycrate", LogicalPath: "mycrate", Kind: cargomcp.SymbolCrate, PhysicalPath: "mycrate/index.html"},
				{Crate: "mycrate", LogicalPath: "mycrate::Helper", Kind: cargomcp.SymbolStruct, PhysicalPath: "mycrate/struct.Helper.html"},
				{Crate: "mycrate", LogicalPath: "mycrate::util::Helper", Kind: cargomcp.SymbolStruct, PhysicalPath: "mycrate/util/struct.Helper.html"},
				{Crate: "mycrate", LogicalPath: "mycrate::util", Kind: cargomcp.SymbolModule, PhysicalPath: "mycrate/util/index.html"},
				{Crate: "mycrate", LogicalPath: "mycrate::model::ServerInfo", Kind: cargomcp.SymbolStruct, PhysicalPath: "mycrate/model/struct.ServerInfo.html"},
			},
			"serde_json": {
				{Crate: "serde_json", LogicalPath: "serde_json", Kind: cargomcp.SymbolCrate, PhysicalPath: "serde_json/index.html"},
				{Crate: "serde_json", LogicalPath: "serde_json::Value", Kind: cargomcp.SymbolEnum, PhysicalPath: "serde_json/enum.Value.html"},
			},
		},
		anchors: map[string]string{
			"mycrate/struct.Helper.html":           "src/mycrate/util.rs.html#3-5",
			"mycrate/util/struct.Helper.html":      "src/mycrate/util.rs.html#3-5",
			"mycrate/model/struct.ServerInfo.html": "src/mycrate/model.rs.html#1",
		},
	}

	svc := docindex.NewService()
	svc.Limiter = nil
	svc.Hasher = &mock.ManifestHasher{
		HashManifestFn: func(context.Context, cargomcp.ProjectRoot) (string, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.hash, nil
		},
	}
	svc.Metadata = &mock.MetadataReader{
		ReadMetadataFn: func(context.Context, cargomcp.ProjectRoot) (*cargomcp.Metadata, error) {
			f.metadata.Add(1)
			return &cargomcp.Metadata{
				Crates: []cargomcp.CrateDescriptor{
					{Name: "mycrate", Version: "0.1.0", Source: cargomcp.SourcePath, DocName: "mycrate", Member: true},
					{Name: "serde_json", Version: "1.0.0", Source: cargomcp.SourceRegistry, DocName: "serde_json"},
					{Name: "serde_json", Version: "0.9.0", Source: cargomcp.SourceRegistry, DocName: "serde_json"},
				},
				RootCrate: "mycrate",
				TargetDir: f.target,
			}, nil
		},
	}
	svc.DocCommand = func(root cargomcp.ProjectRoot) cargomcp.Command {
		return cargomcp.Command{Kind: "doc", Program: "cargo", Args: []string{"doc"}, Root: root, Mutating: true, Gate: cargomcp.GateReject}
	}
	svc.Orchestrator = &mock.Orchestrator{
		StartFn: func(_ context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
			f.builds.Add(1)
			return &cargomcp.TaskSnapshot{ID: "doc-task", Kind: cmd.Kind, State: cargomcp.TaskRunning}, nil
		},
		WaitFn: func(context.Context, cargomcp.TaskID) (*cargomcp.TaskSnapshot, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			snap := &cargomcp.TaskSnapshot{ID: "doc-task", State: f.docState}
			if f.docState == cargomcp.TaskFailed {
				code := 101
				snap.ExitCode = &code
				snap.Diagnostics = []cargomcp.Diagnostic{
					{Severity: cargomcp.SeverityError, Kind: cargomcp.KindCompiler, Message: "cannot find type `Missing` in this scope", Code: "E0412",
						Span: &cargomcp.Span{File: "src/lib.rs", LineStart: 4, ColumnStart: 9}},
				}
			}
			return snap, nil
		},
		AcknowledgeFn: func(context.Context, cargomcp.TaskID) error { return nil },
	}
	svc.Reader = &mock.DocReader{
		ReadCrateFn: func(_ context.Context, docDir string, crate cargomcp.CrateDescriptor) (*cargomcp.CrateDocs, error) {
			if docDir != filepath.Join(f.target, "doc") {
				return nil, errors.New("unexpected doc dir " + docDir)
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			pages := append([]cargomcp.ManifestPage(nil), f.pages[crate.DocName]...)
			return &cargomcp.CrateDocs{Pages: pages, Manifest: f.manifest && len(pages) > 0}, nil
		},
		SourceAnchorFn: func(_ context.Context, _, physicalPath string) (string, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.anchored = append(f.anchored, physicalPath)
			return f.anchors[physicalPath], nil
		},
		ReadOverviewFn: func(_ context.Context, _, physicalPath string) (string, error) {
			if physicalPath == "serde_json/index.html" {
				return "", nil
			}
			return "<p>overview of " + physicalPath + "</p>", nil
		},
		ReadContentFn: func(_ context.Context, _, physicalPath string) (string, error) {
			f.reads.Add(1)
			return "<h1>Page</h1><h2 id=\"fields\">Fields</h2><p>" + physicalPath + "</p>", nil
		},
	}
	svc.Converter = &mock.Converter{
		ConvertFn: func(html string) (string, error) {
			return "# Page\n\n## Fields\n\n" + html, nil
		},
	}
	f.svc = svc
	return f
}

// writeRootPage creates the root crate page under docDir with mtime.
func writeRootPage(t *testing.T, docDir string, mtime time.Time) {
	t.Helper()
	page := filepath.Join(docDir, "mycrate", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0o755))
	require.NoError(t, os.WriteFile(page, []byte("<html></html>"), 0o644))
	require.NoError(t, os.Chtimes(page, mtime, mtime))
}

func (f *fixture) edit(hash string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash = hash
	if fn != nil {
		fn()
	}
}

func TestService_FindSymbol(t *testing.T) {
	t.Parallel()

	t.Run("returns every page of a re-exported item", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		res, err := f.svc.FindSymbol(context.Background(), root, "crate::util::Helper", cargomcp.FindOptions{})
		require.NoError(t, err)

		assert.Equal(t, "crate::util::Helper", res.Query)
		assert.Equal(t, "mycrate::util::Helper", res.Normalized)
		require.Len(t, res.Matches, 2)
		assert.NotEqual(t, res.Matches[0].PhysicalPath, res.Matches[1].PhysicalPath)
		assert.Equal(t, cargomcp.MatchExact, res.Matches[0].Match)
		assert.Equal(t, cargomcp.MatchReexport, res.Matches[1].Match)
		assert.Equal(t, "1-h1", res.Version)
	})

	t.Run("resolves source anchors of member crates only", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		_, err := f.svc.FindSymbol(context.Background(), root, "mycrate::Helper", cargomcp.FindOptions{})
		require.NoError(t, err)

		f.mu.Lock()
		defer f.mu.Unlock()
		assert.ElementsMatch(t, []string{
			"mycrate/struct.Helper.html",
			"mycrate/util/struct.Helper.html",
			"mycrate/model/struct.ServerInfo.html",
		}, f.anchored)
	})

	t.Run("rebuilds exactly once after a manifest change", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.FindSymbol(ctx, root, "mycrate::Helper", cargomcp.FindOptions{})
		require.NoError(t, err)
		require.EqualValues(t, 1, f.builds.Load())

		f.edit("h2", nil)

		var wg sync.WaitGroup
		versions := make([]string, 8)
		for i := range versions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.svc.FindSymbol(ctx, root, "mycrate::Helper", cargomcp.FindOptions{})
				if assert.NoError(t, err) {
					versions[i] = res.Version
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 2, f.builds.Load())
		for _, v := range versions {
			assert.Equal(t, "2-h2", v)
		}
	})

	t.Run("does not rebuild while the manifest is unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		for range 3 {
			_, err := f.svc.FindSymbol(context.Background(), root, "mycrate::Helper", cargomcp.FindOptions{})
			require.NoError(t, err)
		}
		assert.EqualValues(t, 1, f.builds.Load())
	})

	t.Run("fails without a page manifest", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.manifest = false

		_, err := f.svc.FindSymbol(context.Background(), root, "mycrate::Helper", cargomcp.FindOptions{})
		assert.Equal(t, cargomcp.EUNAVAILABLE, cargomcp.ErrorCode(err))
	})

	t.Run("rejects an empty query", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		_, err := f.svc.FindSymbol(context.Background(), root, " :: ", cargomcp.FindOptions{})
		assert.Equal(t, cargomcp.EINVALID, cargomcp.ErrorCode(err))
	})

	t.Run("returns an empty match list for unknown symbols", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		res, err := f.svc.FindSymbol(context.Background(), root, "mycrate::Nope", cargomcp.FindOptions{})
		require.NoError(t, err)
		assert.NotNil(t, res.Matches)
		assert.Empty(t, res.Matches)
	})

	t.Run("forces a rebuild on request", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.FindSymbol(ctx, root, "mycrate::Helper", cargomcp.FindOptions{})
		require.NoError(t, err)
		res, err := f.svc.FindSymbol(ctx, root, "mycrate::Helper", cargomcp.FindOptions{Refresh: true})
		require.NoError(t, err)

		assert.EqualValues(t, 2, f.builds.Load())
		assert.Equal(t, "2-h1", res.Version)
	})
}

func TestService_GetDocumentation(t *testing.T) {
	t.Parallel()

	t.Run("renders a page returned by FindSymbol", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		res, err := f.svc.FindSymbol(ctx, root, "mycrate::util::Helper", cargomcp.FindOptions{})
		require.NoError(t, err)

		for _, m := range res.Matches {
			page, err := f.svc.GetDocumentation(ctx, root, m.PhysicalPath)
			require.NoError(t, err)
			assert.Equal(t, m.PhysicalPath, page.Entry.PhysicalPath)
			assert.Contains(t, page.Markdown, m.PhysicalPath)
			assert.Equal(t, res.Version, page.Version)
			require.Len(t, page.Sections, 2)
			assert.Equal(t, "Fields", page.Sections[1].Title)
		}
	})

	t.Run("fails with a stale path after the symbol moved", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		// Given a path obtained from the index
		old := "mycrate/model/struct.ServerInfo.html"
		_, err := f.svc.GetDocumentation(ctx, root, old)
		require.NoError(t, err)

		// When the symbol moves and the manifest changes
		f.edit("h2", func() {
			pages := f.pages["mycrate"][:4]
			f.pages["mycrate"] = append(pages, cargomcp.ManifestPage{
				Crate: "mycrate", LogicalPath: "mycrate::handler::server::ServerInfo", Kind: cargomcp.SymbolStruct, PhysicalPath: "mycrate/handler/server/struct.ServerInfo.html",
			})
		})

		// Then the old path is rejected rather than guessed
		_, err = f.svc.GetDocumentation(ctx, root, old)
		assert.Equal(t, cargomcp.ESTALE, cargomcp.ErrorCode(err))

		// And the new location is found by looking the symbol up again
		res, err := f.svc.FindSymbol(ctx, root, "ServerInfo", cargomcp.FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, "mycrate::ServerInfo", res.Normalized)
		assert.Empty(t, res.Matches)

		res, err = f.svc.FindSymbol(ctx, root, "handler::server::ServerInfo", cargomcp.FindOptions{})
		require.NoError(t, err)
		require.Len(t, res.Matches, 1)
		page, err := f.svc.GetDocumentation(ctx, root, res.Matches[0].PhysicalPath)
		require.NoError(t, err)
		assert.Equal(t, "mycrate::handler::server::ServerInfo", page.Entry.LogicalPath)
	})

	t.Run("never accepts a logical path", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		_, err := f.svc.GetDocumentation(context.Background(), root, "mycrate::Helper")
		assert.Equal(t, cargomcp.ESTALE, cargomcp.ErrorCode(err))
	})

	t.Run("caches rendered pages per index version", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		for range 3 {
			_, err := f.svc.GetDocumentation(ctx, root, "mycrate/struct.Helper.html")
			require.NoError(t, err)
		}
		assert.EqualValues(t, 1, f.reads.Load())

		f.edit("h2", nil)
		_, err := f.svc.GetDocumentation(ctx, root, "mycrate/struct.Helper.html")
		require.NoError(t, err)
		assert.EqualValues(t, 2, f.reads.Load())
	})

	t.Run("reports pages that vanished from disk as stale", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.svc.Reader.(*mock.DocReader).ReadContentFn = func(context.Context, string, string) (string, error) {
			return "", cargomcp.Errorf(cargomcp.ENOTFOUND, "gone")
		}

		_, err := f.svc.GetDocumentation(context.Background(), root, "mycrate/struct.Helper.html")
		assert.Equal(t, cargomcp.ESTALE, cargomcp.ErrorCode(err))
	})
}

func TestService_Overview(t *testing.T) {
	t.Parallel()

	t.Run("converts the crate docblock", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		ov, err := f.svc.Overview(context.Background(), root, "mycrate@0.1.0")
		require.NoError(t, err)

		assert.Equal(t, "mycrate", ov.Crate.Name)
		assert.Equal(t, "mycrate/index.html", ov.PhysicalPath)
		assert.Contains(t, ov.Markdown, "overview of mycrate/index.html")
	})

	t.Run("works in overview-only mode", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.manifest = false

		ov, err := f.svc.Overview(context.Background(), root, "serde-json")
		require.NoError(t, err)
		assert.Equal(t, "serde_json/index.html", ov.PhysicalPath)
		assert.Empty(t, ov.Markdown)
	})

	t.Run("fails for crates outside the graph", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		_, err := f.svc.Overview(context.Background(), root, "tokio")
		assert.Equal(t, cargomcp.EUNKNOWNCRATE, cargomcp.ErrorCode(err))

		_, err = f.svc.Overview(context.Background(), root, "mycrate@9.9.9")
		assert.Equal(t, cargomcp.EUNKNOWNCRATE, cargomcp.ErrorCode(err))
	})
}

func TestService_ListCrates(t *testing.T) {
	t.Parallel()

	t.Run("does not generate documentation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		list, err := f.svc.ListCrates(context.Background(), root)
		require.NoError(t, err)

		assert.Len(t, list.Crates, 3)
		assert.Equal(t, "mycrate", list.RootCrate)
		assert.Equal(t, "0-h1", list.Version)
		assert.Zero(t, f.builds.Load())

		_, err = f.svc.ListCrates(context.Background(), root)
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.metadata.Load(), "metadata is cached per hash")
	})

	t.Run("uses the built index when it is current", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.Refresh(context.Background(), root)
		require.NoError(t, err)

		list, err := f.svc.ListCrates(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, "1-h1", list.Version)
	})
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("fails when documentation could not be generated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.docState = cargomcp.TaskFailed

		_, err := f.svc.Refresh(context.Background(), root)

		var buildErr *cargomcp.DocBuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, cargomcp.TaskFailed, buildErr.Task.State)
		assert.Equal(t, cargomcp.EINTERNAL, cargomcp.ErrorCode(err))
		assert.Contains(t, cargomcp.ErrorMessage(err), "src/lib.rs:4:9: error[E0412]")
	})

	t.Run("keeps a failed documentation task pollable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		orch := process.NewOrchestrator()
		t.Cleanup(func() { _ = orch.Close() })
		dir := t.TempDir()
		f.svc.Orchestrator = orch
		f.svc.DocCommand = func(cargomcp.ProjectRoot) cargomcp.Command {
			return cargomcp.Command{
				Kind:     "doc",
				Program:  "/bin/sh",
				Args:     []string{"-c", "echo 'error: boom' >&2; exit 101"},
				Root:     cargomcp.ProjectRoot(dir),
				Mutating: true,
				Gate:     cargomcp.GateReject,
			}
		}

		_, err := f.svc.Refresh(context.Background(), root)

		var buildErr *cargomcp.DocBuildError
		require.ErrorAs(t, err, &buildErr)
		snap, err := orch.Poll(context.Background(), buildErr.Task.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, cargomcp.TaskFailed, snap.State)
	})

	t.Run("does not acknowledge a failed documentation task", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.docState = cargomcp.TaskFailed
		var acked atomic.Int32
		f.svc.Orchestrator.(*mock.Orchestrator).AcknowledgeFn = func(context.Context, cargomcp.TaskID) error {
			acked.Add(1)
			return nil
		}

		_, err := f.svc.Refresh(context.Background(), root)

		require.Error(t, err)
		assert.Zero(t, acked.Load())
	})

	t.Run("acknowledges a successful documentation task", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		var acked []cargomcp.TaskID
		f.svc.Orchestrator.(*mock.Orchestrator).AcknowledgeFn = func(_ context.Context, id cargomcp.TaskID) error {
			acked = append(acked, id)
			return nil
		}

		_, err := f.svc.Refresh(context.Background(), root)

		require.NoError(t, err)
		assert.Equal(t, []cargomcp.TaskID{"doc-task"}, acked)
	})

	t.Run("keys the index by the lockfile written during the build", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		orch := f.svc.Orchestrator.(*mock.Orchestrator)
		start := orch.StartFn
		orch.StartFn = func(ctx context.Context, cmd cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
			f.edit("h2", nil)
			return start(ctx, cmd)
		}
		var saved *cargomcp.IndexSnapshot
		f.svc.Store = &mock.SnapshotStore{
			FindSnapshotFn: func(context.Context, cargomcp.ProjectRoot, string) (*cargomcp.IndexSnapshot, error) {
				return nil, cargomcp.Errorf(cargomcp.ENOTFOUND, "no snapshot")
			},
			SaveSnapshotFn: func(_ context.Context, snap *cargomcp.IndexSnapshot) error {
				saved = snap
				return nil
			},
		}

		first, err := f.svc.FindSymbol(context.Background(), root, "Helper", cargomcp.FindOptions{})
		require.NoError(t, err)
		second, err := f.svc.FindSymbol(context.Background(), root, "Helper", cargomcp.FindOptions{})
		require.NoError(t, err)

		assert.EqualValues(t, 1, f.builds.Load())
		assert.Equal(t, first.Version, second.Version)
		require.NotNil(t, saved)
		assert.Equal(t, "h2", saved.Hash)
	})

	t.Run("tolerates a failed build that generated the root crate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.docState = cargomcp.TaskFailed
		page := filepath.Join(f.target, "doc", "mycrate", "index.html")
		require.NoError(t, os.MkdirAll(filepath.Dir(page), 0o755))
		require.NoError(t, os.WriteFile(page, []byte("<html></html>"), 0o644))

		v, err := f.svc.Refresh(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, "h1", v.Hash)
	})

	t.Run("propagates a busy project", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.svc.Orchestrator.(*mock.Orchestrator).StartFn = func(context.Context, cargomcp.Command) (*cargomcp.TaskSnapshot, error) {
			return nil, cargomcp.Errorf(cargomcp.EBUSY, "project busy")
		}

		_, err := f.svc.Refresh(context.Background(), root)
		assert.Equal(t, cargomcp.EBUSY, cargomcp.ErrorCode(err))
	})

	t.Run("returns the current index when throttled", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.svc.Limiter = docindex.NewRefreshLimiter(time.Hour)

		first, err := f.svc.Refresh(context.Background(), root)
		require.NoError(t, err)
		second, err := f.svc.Refresh(context.Background(), root)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.EqualValues(t, 1, f.builds.Load())
	})

	t.Run("reuses a stored snapshot whose documentation is on disk", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		docDir := filepath.Join(f.target, "doc")
		writeRootPage(t, docDir, time.Now().Add(-time.Hour))

		var saved []*cargomcp.IndexSnapshot
		f.svc.Store = &mock.SnapshotStore{
			FindSnapshotFn: func(_ context.Context, r cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error) {
				return &cargomcp.IndexSnapshot{
					Root: r, Hash: hash, DocDir: docDir, RootCrate: "mycrate", Manifest: true, Documented: true,
					CreatedAt: time.Now().Add(-time.Minute),
					Pages: []cargomcp.ManifestPage{{Crate: "mycrate", LogicalPath: "mycrate::Stored", Kind: cargomcp.SymbolStruct, PhysicalPath: "mycrate/struct.Stored.html"}},
				}, nil
			},
			SaveSnapshotFn: func(_ context.Context, snap *cargomcp.IndexSnapshot) error {
				saved = append(saved, snap)
				return nil
			},
		}

		res, err := f.svc.FindSymbol(context.Background(), root, "Stored", cargomcp.FindOptions{})
		require.NoError(t, err)
		require.Len(t, res.Matches, 1)
		assert.Zero(t, f.builds.Load())
		assert.Empty(t, saved)
	})

	t.Run("rebuilds when documentation was regenerated after the snapshot", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		docDir := filepath.Join(f.target, "doc")
		writeRootPage(t, docDir, time.Now())

		f.svc.Store = &mock.SnapshotStore{
			FindSnapshotFn: func(_ context.Context, r cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error) {
				return &cargomcp.IndexSnapshot{
					Root: r, Hash: hash, DocDir: docDir, RootCrate: "mycrate", Manifest: true, Documented: true,
					CreatedAt: time.Now().Add(-time.Hour),
				}, nil
			},
			SaveSnapshotFn: func(context.Context, *cargomcp.IndexSnapshot) error { return nil },
		}

		res, err := f.svc.FindSymbol(context.Background(), root, "Helper", cargomcp.FindOptions{})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Matches)
		assert.EqualValues(t, 1, f.builds.Load())
	})

	t.Run("rebuilds when the stored documentation lost its root page", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		docDir := filepath.Join(f.target, "doc")
		require.NoError(t, os.MkdirAll(docDir, 0o755))

		f.svc.Store = &mock.SnapshotStore{
			FindSnapshotFn: func(_ context.Context, r cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error) {
				return &cargomcp.IndexSnapshot{
					Root: r, Hash: hash, DocDir: docDir, RootCrate: "mycrate", Documented: true,
					CreatedAt: time.Now(),
				}, nil
			},
			SaveSnapshotFn: func(context.Context, *cargomcp.IndexSnapshot) error { return nil },
		}

		_, err := f.svc.FindSymbol(context.Background(), root, "Helper", cargomcp.FindOptions{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.builds.Load())
	})

	t.Run("saves new snapshots", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		var saved *cargomcp.IndexSnapshot
		f.svc.Store = &mock.SnapshotStore{
			FindSnapshotFn: func(context.Context, cargomcp.ProjectRoot, string) (*cargomcp.IndexSnapshot, error) {
				return nil, cargomcp.Errorf(cargomcp.ENOTFOUND, "no snapshot")
			},
			SaveSnapshotFn: func(_ context.Context, snap *cargomcp.IndexSnapshot) error {
				saved = snap
				return nil
			},
		}

		_, err := f.svc.FindSymbol(context.Background(), root, "Helper", cargomcp.FindOptions{})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Equal(t, "h1", saved.Hash)
		assert.True(t, saved.Manifest)
		assert.Len(t, saved.Pages, 7, "the second serde_json version shares the first one's pages")
	})
}
