package mock

import (
	"context"

	"github.com/fwojciec/cargomcp"
)

var _ cargomcp.DocIndexService = (*DocIndexService)(nil)

// DocIndexService is a mock implementation of cargomcp.DocIndexService.
type DocIndexService struct {
	RefreshFn          func(ctx context.Context, root cargomcp.ProjectRoot) (cargomcp.IndexVersion, error)
	ListCratesFn       func(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.CrateList, error)
	OverviewFn         func(ctx context.Context, root cargomcp.ProjectRoot, crate string) (*cargomcp.Overview, error)
	FindSymbolFn       func(ctx context.Context, root cargomcp.ProjectRoot, query string, opts cargomcp.FindOptions) (*cargomcp.SymbolResult, error)
	GetDocumentationFn func(ctx context.Context, root cargomcp.ProjectRoot, physicalPath string) (*cargomcp.Page, error)
}

func (s *DocIndexService) Refresh(ctx context.Context, root cargomcp.ProjectRoot) (cargomcp.IndexVersion, error) {
	return s.RefreshFn(ctx, root)
}

func (s *DocIndexService) ListCrates(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.CrateList, error) {
	return s.ListCratesFn(ctx, root)
}

func (s *DocIndexService) Overview(ctx context.Context, root cargomcp.ProjectRoot, crate string) (*cargomcp.Overview, error) {
	return s.OverviewFn(ctx, root, crate)
}

func (s *DocIndexService) FindSymbol(ctx context.Context, root cargomcp.ProjectRoot, query string, opts cargomcp.FindOptions) (*cargomcp.SymbolResult, error) {
	return s.FindSymbolFn(ctx, root, query, opts)
}

func (s *DocIndexService) GetDocumentation(ctx context.Context, root cargomcp.ProjectRoot, physicalPath string) (*cargomcp.Page, error) {
	return s.GetDocumentationFn(ctx, root, physicalPath)
}

var _ cargomcp.DocReader = (*DocReader)(nil)

// DocReader is a mock implementation of cargomcp.DocReader.
type DocReader struct {
	ReadCrateFn    func(ctx context.Context, docDir string, crate cargomcp.CrateDescriptor) (*cargomcp.CrateDocs, error)
	SourceAnchorFn func(ctx context.Context, docDir, physicalPath string) (string, error)
	ReadOverviewFn func(ctx context.Context, docDir, physicalPath string) (string, error)
	ReadContentFn  func(ctx context.Context, docDir, physicalPath string) (string, error)
}

func (r *DocReader) ReadCrate(ctx context.Context, docDir string, crate cargomcp.CrateDescriptor) (*cargomcp.CrateDocs, error) {
	return r.ReadCrateFn(ctx, docDir, crate)
}

func (r *DocReader) SourceAnchor(ctx context.Context, docDir, physicalPath string) (string, error) {
	return r.SourceAnchorFn(ctx, docDir, physicalPath)
}

func (r *DocReader) ReadOverview(ctx context.Context, docDir, physicalPath string) (string, error) {
	return r.ReadOverviewFn(ctx, docDir, physicalPath)
}

func (r *DocReader) ReadContent(ctx context.Context, docDir, physicalPath string) (string, error) {
	return r.ReadContentFn(ctx, docDir, physicalPath)
}

var _ cargomcp.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is a mock implementation of cargomcp.SnapshotStore.
type SnapshotStore struct {
	FindSnapshotFn    func(ctx context.Context, root cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error)
	SaveSnapshotFn    func(ctx context.Context, snap *cargomcp.IndexSnapshot) error
	DeleteSnapshotsFn func(ctx context.Context, root cargomcp.ProjectRoot) error
	FindSnapshotsFn   func(ctx context.Context, filter cargomcp.SnapshotFilter) ([]*cargomcp.SnapshotInfo, error)
}

func (s *SnapshotStore) FindSnapshot(ctx context.Context, root cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error) {
	return s.FindSnapshotFn(ctx, root, hash)
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *cargomcp.IndexSnapshot) error {
	return s.SaveSnapshotFn(ctx, snap)
}

func (s *SnapshotStore) DeleteSnapshots(ctx context.Context, root cargomcp.ProjectRoot) error {
	return s.DeleteSnapshotsFn(ctx, root)
}

func (s *SnapshotStore) FindSnapshots(ctx context.Context, filter cargomcp.SnapshotFilter) ([]*cargomcp.SnapshotInfo, error) {
	return s.FindSnapshotsFn(ctx, filter)
}
