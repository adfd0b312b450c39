package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// DefaultTable is the SQL table of user objects.
const DefaultTable = "user_objects"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func tableName(t string) (string, error) {
	if t == "" {
		return DefaultTable, nil
	}
	if !tableNamePattern.MatchString(t) {
		return "", fmt.Errorf("storage: invalid table name %q", t)
	}
	return t, nil
}

// SQLite keeps user objects in a SQLite database.
type SQLite struct {
	db     *sql.DB
	get    string
	upsert string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and creates the table.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path, table string) (*SQLite, error) {
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %q: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id         TEXT PRIMARY KEY,
		object     TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate sqlite: %w", err)
	}
	return &SQLite{
		db:  db,
		get: `SELECT object FROM ` + table + ` WHERE id = ?`,
		upsert: `INSERT INTO ` + table + ` (id, object, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET object = excluded.object, updated_at = excluded.updated_at`,
	}, nil
}

// Get implements [Store].
func (s *SQLite) Get(ctx context.Context, id string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.get, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite get %q: %w", id, err)
	}
	return decode([]byte(data))
}

// Set implements [Store].
func (s *SQLite) Set(ctx context.Context, id string, obj map[string]any) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, id, string(data)); err != nil {
		return fmt.Errorf("storage: sqlite set %q: %w", id, err)
	}
	return nil
}

// Ping implements [Pinger].
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
