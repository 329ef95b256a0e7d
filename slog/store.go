package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Ensure LoggingSnapshotStore implements cargomcp.SnapshotStore.
var _ cargomcp.SnapshotStore = (*LoggingSnapshotStore)(nil)

// LoggingSnapshotStore wraps a SnapshotStore with logging. Failed writes
// are logged as warnings, everything else at debug level.
type LoggingSnapshotStore struct {
	next   cargomcp.SnapshotStore
	logger *slog.Logger
}

// NewLoggingSnapshotStore creates a new LoggingSnapshotStore.
func NewLoggingSnapshotStore(next cargomcp.SnapshotStore, logger *slog.Logger) *LoggingSnapshotStore {
	return &LoggingSnapshotStore{next: next, logger: logger}
}

// FindSnapshot delegates to the wrapped store.
func (s *LoggingSnapshotStore) FindSnapshot(ctx context.Context, root cargomcp.ProjectRoot, hash string) (snap *cargomcp.IndexSnapshot, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("snapshot lookup",
			"root", root,
			"hash", hash,
			"found", snap != nil,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.FindSnapshot(ctx, root, hash)
}

// SaveSnapshot delegates to the wrapped store.
func (s *LoggingSnapshotStore) SaveSnapshot(ctx context.Context, snap *cargomcp.IndexSnapshot) (err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "snapshot save",
			"root", snap.Root,
			"hash", snap.Hash,
			"pages", len(snap.Pages),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SaveSnapshot(ctx, snap)
}

// DeleteSnapshots delegates to the wrapped store.
func (s *LoggingSnapshotStore) DeleteSnapshots(ctx context.Context, root cargomcp.ProjectRoot) (err error) {
	defer func() {
		s.logger.Info("snapshot delete", "root", root, "err", err)
	}()
	return s.next.DeleteSnapshots(ctx, root)
}

// FindSnapshots delegates to the wrapped store.
func (s *LoggingSnapshotStore) FindSnapshots(ctx context.Context, filter cargomcp.SnapshotFilter) ([]*cargomcp.SnapshotInfo, error) {
	return s.next.FindSnapshots(ctx, filter)
}
