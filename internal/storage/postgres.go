package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps user objects in a jsonb column.
type Postgres struct {
	pool   *pgxpool.Pool
	get    string
	upsert string
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn, pings the server and creates the table.
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: postgres: ping: %w", err)
	}

	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
    id         TEXT        PRIMARY KEY,
    object     JSONB       NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: postgres: migrate: %w", err)
	}
	return &Postgres{
		pool: pool,
		get:  `SELECT object FROM ` + table + ` WHERE id = $1`,
		upsert: `
		INSERT INTO ` + table + ` (id, object, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		    SET object = EXCLUDED.object, updated_at = EXCLUDED.updated_at`,
	}, nil
}

// Get implements [Store].
func (s *Postgres) Get(ctx context.Context, id string) (map[string]any, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, s.get, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: postgres get %q: %w", id, err)
	}
	return decode(data)
}

// Set implements [Store].
func (s *Postgres) Set(ctx context.Context, id string, obj map[string]any) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, s.upsert, id, data); err != nil {
		return fmt.Errorf("storage: postgres set %q: %w", id, err)
	}
	return nil
}

// Pool returns the connection pool, for sharing with other components.
func (s *Postgres) Pool() *pgxpool.Pool { return s.pool }

// Ping implements [Pinger].
func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
