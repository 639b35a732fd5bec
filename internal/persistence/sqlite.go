package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go, cgo-free driver registered under "sqlite"

	"github.com/usedplus/core/internal/core"
)

// SQLiteStore is the default embedded backend for a single-player farm-sim
// host: one file, no server process, pure Go (no cgo) via modernc.org/sqlite.
type SQLiteStore struct {
	db *sqlx.DB
}

// snapshotRow mirrors core_snapshots' columns for sqlx's struct scanning.
type snapshotRow struct {
	Slot    string `db:"slot"`
	Version int64  `db:"version"`
	Data    []byte `db:"data"`
}

// OpenSQLite opens (creating if necessary) a sqlite database at path and
// ensures the snapshot table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS core_snapshots (
			slot    TEXT PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 0,
			data    BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, snap core.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO core_snapshots (slot, version, data) VALUES (?, 1, ?)
		ON CONFLICT(slot) DO UPDATE SET version = version + 1, data = excluded.data
	`, Slot, data)
	if err != nil {
		return fmt.Errorf("persistence: save sqlite snapshot: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (core.Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `SELECT slot, version, data FROM core_snapshots WHERE slot = ?`, Slot)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("persistence: load sqlite snapshot: %w", err)
	}
	return decode(row.Data)
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
