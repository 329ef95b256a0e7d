package mock

import (
	"context"

	"github.com/fwojciec/cargomcp"
)

var _ cargomcp.ProjectLocator = (*ProjectLocator)(nil)

// ProjectLocator is a mock implementation of cargomcp.ProjectLocator.
type ProjectLocator struct {
	LocateFn func(ctx context.Context, dir string, scope cargomcp.Scope) (cargomcp.ProjectRoot, error)
}

func (l *ProjectLocator) Locate(ctx context.Context, dir string, scope cargomcp.Scope) (cargomcp.ProjectRoot, error) {
	return l.LocateFn(ctx, dir, scope)
}

var _ cargomcp.ManifestHasher = (*ManifestHasher)(nil)

// ManifestHasher is a mock implementation of cargomcp.ManifestHasher.
type ManifestHasher struct {
	HashManifestFn func(ctx context.Context, root cargomcp.ProjectRoot) (string, error)
}

func (h *ManifestHasher) HashManifest(ctx context.Context, root cargomcp.ProjectRoot) (string, error) {
	return h.HashManifestFn(ctx, root)
}

var _ cargomcp.MetadataReader = (*MetadataReader)(nil)

// MetadataReader is a mock implementation of cargomcp.MetadataReader.
type MetadataReader struct {
	ReadMetadataFn func(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.Metadata, error)
}

func (r *MetadataReader) ReadMetadata(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.Metadata, error) {
	return r.ReadMetadataFn(ctx, root)
}
