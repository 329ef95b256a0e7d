package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Compile-time interface verification.
var _ cargomcp.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore implements cargomcp.SnapshotStore using SQLite. Each project
// keeps only its most recent snapshot.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// FindSnapshot retrieves the snapshot of a project for a manifest hash.
func (s *SnapshotStore) FindSnapshot(ctx context.Context, root cargomcp.ProjectRoot, hash string) (*cargomcp.IndexSnapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots WHERE root = ? AND hash = ?
	`, string(root), hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cargomcp.Errorf(cargomcp.ENOTFOUND, "no snapshot of %s for hash %s", root, hash)
	}
	if err != nil {
		return nil, err
	}

	var snap cargomcp.IndexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s: %w", root, err)
	}
	return &snap, nil
}

// SaveSnapshot stores a snapshot and drops older snapshots of its project.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *cargomcp.IndexSnapshot) error {
	if snap.Root == "" || snap.Hash == "" {
		return cargomcp.Errorf(cargomcp.EINVALID, "snapshot root and hash required")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of %s: %w", snap.Root, err)
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (root, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (root) DO UPDATE SET updated_at = excluded.updated_at
	`, string(snap.Root), now, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE root = ?`, string(snap.Root)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (root, hash, doc_dir, crate_count, page_count, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(snap.Root), snap.Hash, snap.DocDir, len(snap.Crates), len(snap.Pages), data,
		createdAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteSnapshots removes a project and all of its snapshots.
func (s *SnapshotStore) DeleteSnapshots(ctx context.Context, root cargomcp.ProjectRoot) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE root = ?`, string(root))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return cargomcp.Errorf(cargomcp.ENOTFOUND, "no snapshots of %s", root)
	}
	return nil
}

// FindSnapshots lists stored snapshots, most recent first.
func (s *SnapshotStore) FindSnapshots(ctx context.Context, filter cargomcp.SnapshotFilter) ([]*cargomcp.SnapshotInfo, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT root, hash, doc_dir, crate_count, page_count, created_at FROM snapshots`)
	if filter.Root != nil {
		query.WriteString(" WHERE root = ?")
		args = append(args, string(*filter.Root))
	}
	query.WriteString(" ORDER BY created_at DESC, root")
	paginate(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*cargomcp.SnapshotInfo
	for rows.Next() {
		var info cargomcp.SnapshotInfo
		var root, createdAt string
		if err := rows.Scan(&root, &info.Hash, &info.DocDir, &info.Crates, &info.Pages, &createdAt); err != nil {
			return nil, err
		}
		info.Root = cargomcp.ProjectRoot(root)
		if info.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}
