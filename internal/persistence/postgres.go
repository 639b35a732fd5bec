package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/usedplus/core/internal/core"
)

// PostgresStore is the optional dedicated-multiplayer-host backend, for
// deployments that already run an always-on Postgres server (DESIGN.md's
// "Persistence: sqlite default, pgx optional").
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the snapshot table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS core_snapshots (
			slot    TEXT PRIMARY KEY,
			version BIGINT NOT NULL DEFAULT 0,
			data    JSONB NOT NULL
		)
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: create postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, snap core.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO core_snapshots (slot, version, data) VALUES ($1, 1, $2)
		ON CONFLICT (slot) DO UPDATE SET version = core_snapshots.version + 1, data = excluded.data
	`, Slot, data)
	if err != nil {
		return fmt.Errorf("persistence: save postgres snapshot: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (core.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM core_snapshots WHERE slot = $1`, Slot).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("persistence: load postgres snapshot: %w", err)
	}
	return decode(data)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
