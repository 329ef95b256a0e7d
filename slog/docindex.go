package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Ensure LoggingDocIndex implements cargomcp.DocIndexService.
var _ cargomcp.DocIndexService = (*LoggingDocIndex)(nil)

// LoggingDocIndex wraps a DocIndexService with logging.
type LoggingDocIndex struct {
	next   cargomcp.DocIndexService
	logger *slog.Logger
}

// NewLoggingDocIndex creates a new LoggingDocIndex.
func NewLoggingDocIndex(next cargomcp.DocIndexService, logger *slog.Logger) *LoggingDocIndex {
	return &LoggingDocIndex{next: next, logger: logger}
}

// Refresh delegates to the wrapped service and logs the new version.
func (s *LoggingDocIndex) Refresh(ctx context.Context, root cargomcp.ProjectRoot) (v cargomcp.IndexVersion, err error) {
	defer func(begin time.Time) {
		s.logger.Info("index refresh",
			"root", root,
			"version", v.String(),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Refresh(ctx, root)
}

// ListCrates delegates to the wrapped service and logs the operation.
func (s *LoggingDocIndex) ListCrates(ctx context.Context, root cargomcp.ProjectRoot) (list *cargomcp.CrateList, err error) {
	defer func(begin time.Time) {
		var count int
		if list != nil {
			count = len(list.Crates)
		}
		s.logger.Info("list crates",
			"root", root,
			"count", count,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ListCrates(ctx, root)
}

// Overview delegates to the wrapped service and logs the operation.
func (s *LoggingDocIndex) Overview(ctx context.Context, root cargomcp.ProjectRoot, crate string) (ov *cargomcp.Overview, err error) {
	defer func(begin time.Time) {
		s.logger.Info("crate overview",
			"root", root,
			"crate", crate,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Overview(ctx, root, crate)
}

// FindSymbol delegates to the wrapped service and logs the match count.
func (s *LoggingDocIndex) FindSymbol(ctx context.Context, root cargomcp.ProjectRoot, query string, opts cargomcp.FindOptions) (res *cargomcp.SymbolResult, err error) {
	defer func(begin time.Time) {
		var total int
		var version string
		if res != nil {
			total, version = res.Total, res.Version
		}
		s.logger.Info("find symbol",
			"root", root,
			"query", query,
			"refresh", opts.Refresh,
			"total", total,
			"version", version,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindSymbol(ctx, root, query, opts)
}

// GetDocumentation delegates to the wrapped service and logs the operation.
func (s *LoggingDocIndex) GetDocumentation(ctx context.Context, root cargomcp.ProjectRoot, physicalPath string) (page *cargomcp.Page, err error) {
	defer func(begin time.Time) {
		var size int
		if page != nil {
			size = len(page.Markdown)
		}
		s.logger.Info("get documentation",
			"root", root,
			"path", physicalPath,
			"bytes", size,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.GetDocumentation(ctx, root, physicalPath)
}
