// Package docindex maintains per-project documentation indexes built from
// generated rustdoc output and answers symbol and page queries against them.
package docindex

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/cargomcp"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Ensure Service implements cargomcp.DocIndexService at compile time.
var _ cargomcp.DocIndexService = (*Service)(nil)

// Defaults for a new Service.
const (
	DefaultConcurrency     = 8
	DefaultPageCacheSize   = 256
	DefaultRefreshInterval = 10 * time.Second
)

// Service builds documentation indexes and serves queries from the current
// index of each project. Indexes are rebuilt when the project's manifest
// hash changes; concurrent callers share a single rebuild per project.
type Service struct {
	Hasher       cargomcp.ManifestHasher
	Metadata     cargomcp.MetadataReader
	Reader       cargomcp.DocReader
	Converter    cargomcp.Converter
	Orchestrator cargomcp.Orchestrator

	// Store persists snapshots across runs. Optional.
	Store cargomcp.SnapshotStore

	// DocCommand returns the documentation build command for a project.
	DocCommand func(root cargomcp.ProjectRoot) cargomcp.Command

	// Limiter throttles forced refreshes. Optional.
	Limiter *RefreshLimiter

	// Concurrency bounds the number of crates and pages read at once.
	Concurrency int

	Now func() time.Time

	mu       sync.Mutex
	projects map[cargomcp.ProjectRoot]*project
	seq      atomic.Uint64
	flights  singleflight.Group
	pages    *lru.Cache[string, *cargomcp.Page]
}

// project holds the current state of one project. Readers load each
// pointer once per request and work against that value.
type project struct {
	index atomic.Pointer[cargomcp.DocIndex]
	graph atomic.Pointer[graph]
}

// graph is the metadata-level view of a project, available before any
// documentation has been generated.
type graph struct {
	hash string
	meta *cargomcp.Metadata
}

// NewService returns a Service with default settings. Dependencies must be
// set before use.
func NewService() *Service {
	pages, _ := lru.New[string, *cargomcp.Page](DefaultPageCacheSize)
	return &Service{
		Limiter:     NewRefreshLimiter(DefaultRefreshInterval),
		Concurrency: DefaultConcurrency,
		Now:         time.Now,
		projects:    make(map[cargomcp.ProjectRoot]*project),
		pages:       pages,
	}
}

// Refresh implements cargomcp.DocIndexService. When forced refreshes of
// the project are throttled the current index is returned if it is fresh.
func (s *Service) Refresh(ctx context.Context, root cargomcp.ProjectRoot) (cargomcp.IndexVersion, error) {
	idx, err := s.refresh(ctx, root)
	if err != nil {
		return cargomcp.IndexVersion{}, err
	}
	return idx.Version, nil
}

func (s *Service) refresh(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.DocIndex, error) {
	if s.Limiter != nil && !s.Limiter.Allow(root) {
		return s.current(ctx, root)
	}
	return s.rebuild(ctx, root, true)
}

// ListCrates implements cargomcp.DocIndexService.
func (s *Service) ListCrates(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.CrateList, error) {
	p := s.project(root)
	hash, err := s.Hasher.HashManifest(ctx, root)
	if err != nil {
		return nil, err
	}

	if idx := p.index.Load(); idx != nil && idx.Hash() == hash {
		return &cargomcp.CrateList{
			Root:      root,
			RootCrate: idx.Snapshot().RootCrate,
			Crates:    idx.Crates(),
			Version:   idx.Version.String(),
		}, nil
	}

	g := p.graph.Load()
	if g == nil || g.hash != hash {
		meta, err := s.Metadata.ReadMetadata(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("read metadata of %s: %w", root, err)
		}
		g = &graph{hash: hash, meta: meta}
		p.graph.Store(g)
	}
	return &cargomcp.CrateList{
		Root:      root,
		RootCrate: g.meta.RootCrate,
		Crates:    g.meta.Crates,
		Version:   cargomcp.IndexVersion{Hash: hash}.String(),
	}, nil
}

// Overview implements cargomcp.DocIndexService.
func (s *Service) Overview(ctx context.Context, root cargomcp.ProjectRoot, crate string) (*cargomcp.Overview, error) {
	idx, err := s.current(ctx, root)
	if err != nil {
		return nil, err
	}

	name, version := cargomcp.ParseCrateID(crate)
	if name == "" {
		return nil, cargomcp.Errorf(cargomcp.EINVALID, "crate name required")
	}
	c, ok := idx.Crate(name, version)
	if !ok {
		return nil, cargomcp.Errorf(cargomcp.EUNKNOWNCRATE, "crate %q is not in the dependency graph of %s", crate, root)
	}

	physical := path.Join(c.DocName, "index.html")
	if _, ok := idx.Lookup(physical); !ok {
		return nil, cargomcp.Errorf(cargomcp.EUNAVAILABLE, "no documentation was generated for crate %s", c.ID())
	}

	html, err := s.Reader.ReadOverview(ctx, idx.DocDir(), physical)
	if err != nil {
		return nil, fmt.Errorf("read overview of %s: %w", c.ID(), err)
	}
	var markdown string
	if html != "" {
		if markdown, err = s.Converter.Convert(html); err != nil {
			return nil, fmt.Errorf("convert overview of %s: %w", c.ID(), err)
		}
	}

	return &cargomcp.Overview{
		Crate:        c,
		Markdown:     markdown,
		PhysicalPath: physical,
		Version:      idx.Version.String(),
	}, nil
}

// FindSymbol implements cargomcp.DocIndexService.
func (s *Service) FindSymbol(ctx context.Context, root cargomcp.ProjectRoot, query string, opts cargomcp.FindOptions) (*cargomcp.SymbolResult, error) {
	var idx *cargomcp.DocIndex
	var err error
	if opts.Refresh {
		idx, err = s.refresh(ctx, root)
	} else {
		idx, err = s.current(ctx, root)
	}
	if err != nil {
		return nil, err
	}

	if !idx.HasManifest() {
		return nil, cargomcp.Errorf(cargomcp.EUNAVAILABLE, "no page manifest was generated for %s; only crate overviews are available", root)
	}

	normalized := idx.NormalizeQuery(query)
	if normalized == "" {
		return nil, cargomcp.Errorf(cargomcp.EINVALID, "symbol path required")
	}

	matches, total := idx.FindSymbol(normalized, opts.Limit)
	if matches == nil {
		matches = []cargomcp.SymbolMatch{}
	}
	return &cargomcp.SymbolResult{
		Query:      query,
		Normalized: normalized,
		Matches:    matches,
		Total:      total,
		Version:    idx.Version.String(),
	}, nil
}

// GetDocumentation implements cargomcp.DocIndexService. The physical path
// must be part of the current index; it is never derived from anything else.
func (s *Service) GetDocumentation(ctx context.Context, root cargomcp.ProjectRoot, physicalPath string) (*cargomcp.Page, error) {
	idx, err := s.current(ctx, root)
	if err != nil {
		return nil, err
	}

	entry, ok := idx.Lookup(physicalPath)
	if !ok {
		return nil, cargomcp.Errorf(cargomcp.ESTALE, "%s is not part of index %s; look the symbol up again", physicalPath, idx.Version)
	}

	key := idx.Version.String() + "\x00" + physicalPath
	if page, ok := s.pages.Get(key); ok {
		return page, nil
	}

	html, err := s.Reader.ReadContent(ctx, idx.DocDir(), physicalPath)
	if cargomcp.ErrorCode(err) == cargomcp.ENOTFOUND {
		return nil, cargomcp.Errorf(cargomcp.ESTALE, "%s is no longer on disk; refresh the index and look the symbol up again", physicalPath)
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", physicalPath, err)
	}

	markdown, err := s.Converter.Convert(html)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", physicalPath, err)
	}

	page := &cargomcp.Page{
		Entry:    entry,
		Markdown: markdown,
		Sections: cargomcp.ExtractSections(markdown),
		Version:  idx.Version.String(),
	}
	s.pages.Add(key, page)
	return page, nil
}

// current returns the index matching the project's current manifest hash,
// rebuilding it if the hash changed since the last build.
func (s *Service) current(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.DocIndex, error) {
	hash, err := s.Hasher.HashManifest(ctx, root)
	if err != nil {
		return nil, err
	}
	if idx := s.project(root).index.Load(); idx != nil && idx.Hash() == hash {
		return idx, nil
	}
	return s.rebuild(ctx, root, false)
}

// rebuild joins or starts the single build of a project. The build itself
// is not tied to the caller's context so that callers sharing it are not
// failed by one of them going away.
func (s *Service) rebuild(ctx context.Context, root cargomcp.ProjectRoot, force bool) (*cargomcp.DocIndex, error) {
	buildCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(string(root), func() (any, error) {
		return s.build(buildCtx, root, force)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cargomcp.DocIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) build(ctx context.Context, root cargomcp.ProjectRoot, force bool) (*cargomcp.DocIndex, error) {
	p := s.project(root)
	hash, err := s.Hasher.HashManifest(ctx, root)
	if err != nil {
		return nil, err
	}

	if !force {
		if idx := p.index.Load(); idx != nil && idx.Hash() == hash {
			return idx, nil
		}
		if snap := s.storedSnapshot(ctx, root, hash); snap != nil {
			return s.install(p, snap), nil
		}
	}

	meta, err := s.Metadata.ReadMetadata(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("read metadata of %s: %w", root, err)
	}
	p.graph.Store(&graph{hash: hash, meta: meta})

	docDir := docDirOf(root, meta)
	if err := s.document(ctx, root, docDir, meta); err != nil {
		return nil, err
	}

	// cargo writes a missing lockfile during the build; key the snapshot
	// by the files as they are now.
	if after, err := s.Hasher.HashManifest(ctx, root); err != nil {
		return nil, err
	} else if after != hash {
		hash = after
		p.graph.Store(&graph{hash: hash, meta: meta})
	}

	pages, manifest, err := s.readPages(ctx, docDir, meta.Crates)
	if err != nil {
		return nil, err
	}

	snap := &cargomcp.IndexSnapshot{
		Root:       root,
		Hash:       hash,
		DocDir:     docDir,
		RootCrate:  meta.RootCrate,
		Crates:     meta.Crates,
		Pages:      pages,
		Documented: true,
		Manifest:   manifest,
		CreatedAt:  s.now(),
	}
	idx := s.install(p, snap)

	// Persisting is best effort; a missing snapshot costs one rebuild.
	if s.Store != nil {
		_ = s.Store.SaveSnapshot(ctx, snap)
	}
	return idx, nil
}

// storedSnapshot returns a persisted snapshot for hash whose documentation
// is still on disk, or nil.
func (s *Service) storedSnapshot(ctx context.Context, root cargomcp.ProjectRoot, hash string) *cargomcp.IndexSnapshot {
	if s.Store == nil {
		return nil
	}
	snap, err := s.Store.FindSnapshot(ctx, root, hash)
	if err != nil {
		return nil
	}
	if fi, err := os.Stat(snap.DocDir); err != nil || !fi.IsDir() {
		return nil
	}
	// Documentation regenerated after the snapshot was taken may belong to
	// another manifest state.
	stamp, ok := rootPageTime(snap.DocDir, snap.RootCrate, snap.Crates)
	if !ok || stamp.After(snap.CreatedAt) {
		return nil
	}
	return snap
}

// document generates documentation through the orchestrator. A failed
// build is tolerated as long as the root crate's pages were generated.
func (s *Service) document(ctx context.Context, root cargomcp.ProjectRoot, docDir string, meta *cargomcp.Metadata) error {
	task, err := s.Orchestrator.Start(ctx, s.DocCommand(root))
	if err != nil {
		return fmt.Errorf("generate documentation for %s: %w", root, err)
	}

	if !task.State.Terminal() {
		if task, err = s.Orchestrator.Wait(ctx, task.ID); err != nil {
			return fmt.Errorf("generate documentation for %s: %w", root, err)
		}
	}
	if task.State != cargomcp.TaskSucceeded && !rootPageExists(docDir, meta) {
		// The failed task stays pollable until retention evicts it.
		return &cargomcp.DocBuildError{Task: task}
	}

	if err := s.Orchestrator.Acknowledge(ctx, task.ID); err != nil && cargomcp.ErrorCode(err) != cargomcp.ENOTFOUND {
		return fmt.Errorf("acknowledge documentation task %s: %w", task.ID, err)
	}
	return nil
}

// readPages reads every documented crate concurrently, then resolves the
// source anchors of workspace member item pages.
func (s *Service) readPages(ctx context.Context, docDir string, crates []cargomcp.CrateDescriptor) ([]cargomcp.ManifestPage, bool, error) {
	crates = uniqueDocNames(crates)
	results := make([]*cargomcp.CrateDocs, len(crates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, c := range crates {
		g.Go(func() error {
			docs, err := s.Reader.ReadCrate(gctx, docDir, c)
			if err != nil {
				return fmt.Errorf("read documentation of %s: %w", c.ID(), err)
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, c := range crates {
		if !c.Member {
			continue
		}
		pages := results[i].Pages
		for j := range pages {
			if !anchored(pages[j]) {
				continue
			}
			g.Go(func() error {
				anchor, err := s.Reader.SourceAnchor(gctx, docDir, pages[j].PhysicalPath)
				if cargomcp.ErrorCode(err) == cargomcp.ENOTFOUND {
					return nil
				} else if err != nil {
					return fmt.Errorf("read source anchor of %s: %w", pages[j].PhysicalPath, err)
				}
				pages[j].SourceAnchor = anchor
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var pages []cargomcp.ManifestPage
	var manifest bool
	for _, docs := range results {
		pages = append(pages, docs.Pages...)
		manifest = manifest || docs.Manifest
	}
	return pages, manifest, nil
}

func (s *Service) install(p *project, snap *cargomcp.IndexSnapshot) *cargomcp.DocIndex {
	idx := cargomcp.NewDocIndex(s.seq.Add(1), snap)
	p.index.Store(idx)
	return idx
}

func (s *Service) project(root cargomcp.ProjectRoot) *project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[root]
	if !ok {
		p = &project{}
		s.projects[root] = p
	}
	return p
}

func (s *Service) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// docDirOf returns the rustdoc output directory of a project.
func docDirOf(root cargomcp.ProjectRoot, meta *cargomcp.Metadata) string {
	target := meta.TargetDir
	if target == "" {
		target = filepath.Join(root.Dir(), "target")
	}
	return filepath.Join(target, "doc")
}

// rootPageExists reports whether the root crate's page was generated. For
// virtual workspaces any member's root page counts.
func rootPageExists(docDir string, meta *cargomcp.Metadata) bool {
	_, ok := rootPageTime(docDir, meta.RootCrate, meta.Crates)
	return ok
}

// rootPageTime returns the latest modification time of the root crate
// pages, or false if none was generated.
func rootPageTime(docDir, rootCrate string, crates []cargomcp.CrateDescriptor) (time.Time, bool) {
	names := []string{rootCrate}
	if rootCrate == "" {
		names = names[:0]
		for _, c := range crates {
			if c.Member {
				names = append(names, c.DocName)
			}
		}
	}

	var latest time.Time
	var found bool
	for _, name := range names {
		if name == "" {
			continue
		}
		fi, err := os.Stat(filepath.Join(docDir, name, "index.html"))
		if err != nil {
			continue
		}
		found = true
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	return latest, found
}

// uniqueDocNames keeps the first crate for each documentation directory.
// Rustdoc writes one directory per library name, so later versions of the
// same crate share the first one's pages.
func uniqueDocNames(crates []cargomcp.CrateDescriptor) []cargomcp.CrateDescriptor {
	seen := make(map[string]bool, len(crates))
	out := make([]cargomcp.CrateDescriptor, 0, len(crates))
	for _, c := range crates {
		name := c.DocName
		if name == "" {
			name = cargomcp.DocNameOf(c.Name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, c)
	}
	return out
}

// anchored reports whether a page documents an item whose source anchor
// can link it with its re-exports.
func anchored(p cargomcp.ManifestPage) bool {
	return !p.Reexport && p.Kind != cargomcp.SymbolCrate && p.Kind != cargomcp.SymbolModule
}
