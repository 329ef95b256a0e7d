// Package sqlite provides SQLite-based storage of documentation index snapshots.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB is a handle on the snapshot database.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB returns a DB for the file at path, or an in-memory database for
// ":memory:". The database is not opened until Open is called.
func NewDB(path string) *DB {
	return &DB{path: path}
}

func (db *DB) memory() bool {
	return db.path == ":memory:"
}

// pragmas returns the connection settings applied on Open.
func (db *DB) pragmas() []string {
	p := []string{
		// Two servers may share one database file.
		"PRAGMA busy_timeout = 5000",
		// Deleting a project row cascades to its snapshots.
		"PRAGMA foreign_keys = ON",
	}
	if !db.memory() {
		p = append(p, "PRAGMA journal_mode = WAL")
	}
	return p
}

// Open connects to the database, applies connection settings and migrates
// the schema.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", db.path, err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive for the life of the DB.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("connect %s: %w", db.path, err)
	}

	for _, pragma := range db.pragmas() {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db.db = conn
	if err := db.createSchema(); err != nil {
		conn.Close()
		db.db = nil
		return fmt.Errorf("migrate %s: %w", db.path, err)
	}
	return nil
}

// Close closes the connection. Closing an unopened DB is a no-op.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// SchemaVersion is the snapshot encoding version stored in user_version.
// Open drops snapshots written with any other version.
const SchemaVersion = 1

const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		root TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		root TEXT NOT NULL REFERENCES projects(root) ON DELETE CASCADE,
		hash TEXT NOT NULL,
		doc_dir TEXT NOT NULL,
		crate_count INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (root, hash)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// createSchema creates the tables and discards snapshots of other encoding
// versions.
func (db *DB) createSchema() error {
	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version != SchemaVersion {
		if _, err := db.db.Exec("DROP TABLE IF EXISTS snapshots"); err != nil {
			return fmt.Errorf("failed to drop snapshots: %w", err)
		}
	}

	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	_, err := db.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion))
	return err
}
