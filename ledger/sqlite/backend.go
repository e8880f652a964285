// Package sqlite implements the parts ledger on SQLite.
package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists upload sessions and part records in SQLite.
// Suitable for single-node deployments; every query goes through the
// unique (upload_id, part_no) index so upserts stay last-write-wins
// without any application-side locking.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed ledger store.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (ss *SQLiteStore) initSchema() error {
	schema := `
	-- Upload sessions
	CREATE TABLE IF NOT EXISTS vgate_sessions (
		id TEXT PRIMARY KEY,
		mount_id TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		part_size INTEGER NOT NULL DEFAULT 0,
		part_count INTEGER NOT NULL DEFAULT 0,
		storage_type TEXT NOT NULL,
		strategy TEXT NOT NULL,
		provider_upload_id TEXT,
		provider_meta TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vgate_sessions_path ON vgate_sessions(mount_id, path);
	CREATE INDEX IF NOT EXISTS idx_vgate_sessions_updated ON vgate_sessions(updated_at);

	-- Acknowledged parts
	CREATE TABLE IF NOT EXISTS vgate_parts (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		part_no INTEGER NOT NULL,
		byte_start INTEGER NOT NULL DEFAULT 0,
		byte_end INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		checksum TEXT,
		checksum_algo TEXT,
		storage_type TEXT NOT NULL,
		provider_part_id TEXT,
		provider_meta TEXT,
		status TEXT NOT NULL,
		error_code TEXT,
		error_message TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(upload_id, part_no)
	);

	CREATE INDEX IF NOT EXISTS idx_vgate_parts_upload ON vgate_parts(upload_id);
	`

	_, err := ss.db.Exec(schema)
	return err
}

func (ss *SQLiteStore) Open(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

func (ss *SQLiteStore) Close(ctx context.Context) error {
	return ss.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
