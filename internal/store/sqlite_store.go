package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps snapshots in one SQLite table.
// Params: database handle opened with the pure-Go sqlite driver.
// Returns: single-file durable store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens database file and ensures schema.
// Params: database path; ":memory:" keeps an in-process database.
// Returns: initialized store or open/schema error.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir %q: %w", dir, err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Load reads snapshot row for key.
// Params: collection key.
// Returns: payload or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?`, key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query snapshot %q: %w", key, err)
	}
	return body, nil
}

// Save upserts snapshot row for key.
// Params: collection key and payload.
// Returns: exec error.
func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert snapshot %q: %w", key, err)
	}
	return nil
}

// Close closes database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
