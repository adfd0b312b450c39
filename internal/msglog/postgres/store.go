package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dialogic/internal/msglog"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

var _ msglog.Logger = (*Store)(nil)

// Store is the PostgreSQL message log. All methods are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("message log: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("message log: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("message log: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("message log: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Log implements [msglog.Logger].
func (s *Store) Log(ctx context.Context, e msglog.Entry) error {
	const q = `
		INSERT INTO message_logs
		    (id, request_id, user_id, session_id, message_id, source, from_user, text, label, handler, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, ($11::text)::jsonb, $12)`

	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	_, err := s.pool.Exec(ctx, q,
		e.ID, e.RequestID, e.UserID, e.SessionID, e.MessageID, string(e.Source),
		e.FromUser, e.Text, e.Label, e.Handler, data, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("message log: write entry: %w", err)
	}
	return nil
}

// Recent returns up to limit latest entries of userID, oldest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]msglog.Entry, error) {
	const q = `
		SELECT * FROM (
		    SELECT id, request_id, user_id, session_id, message_id, source, from_user, text, label, handler, data::text, timestamp
		    FROM   message_logs
		    WHERE  user_id = $1
		    ORDER  BY timestamp DESC
		    LIMIT  $2
		) recent
		ORDER BY timestamp`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("message log: recent: %w", err)
	}
	return collectEntries(rows)
}

// SearchOpts narrows [Store.Search]. Zero fields are ignored.
type SearchOpts struct {
	UserID string
	Source dialog.Source
	After  time.Time
	Before time.Time
	Limit  int
}

// Search runs a full-text query over logged texts.
func (s *Store) Search(ctx context.Context, query string, opts SearchOpts) ([]msglog.Entry, error) {
	args := []any{query}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('simple', text) @@ plainto_tsquery('simple', $1)",
	}
	if opts.UserID != "" {
		conditions = append(conditions, "user_id = "+next(opts.UserID))
	}
	if opts.Source != "" {
		conditions = append(conditions, "source = "+next(string(opts.Source)))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(opts.Before))
	}

	q := "SELECT id, request_id, user_id, session_id, message_id, source, from_user, text, label, handler, data::text, timestamp\n" +
		"FROM   message_logs\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY timestamp"
	if opts.Limit > 0 {
		q += "\nLIMIT " + next(opts.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("message log: search: %w", err)
	}
	return collectEntries(rows)
}

// Pool exposes the connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collectEntries(rows pgx.Rows) ([]msglog.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (msglog.Entry, error) {
		var (
			e      msglog.Entry
			source string
			data   *string
		)
		if err := row.Scan(&e.ID, &e.RequestID, &e.UserID, &e.SessionID, &e.MessageID, &source,
			&e.FromUser, &e.Text, &e.Label, &e.Handler, &data, &e.Timestamp); err != nil {
			return msglog.Entry{}, err
		}
		e.Source = dialog.Source(source)
		if data != nil {
			e.Data = []byte(*data)
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("message log: scan rows: %w", err)
	}
	if entries == nil {
		entries = []msglog.Entry{}
	}
	return entries, nil
}
