package msglog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/dialogic/pkg/dialog"
)

// tsLayout has a fixed width so that timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const ddlSQLite = `
CREATE TABLE IF NOT EXISTS message_logs (
    id          TEXT     PRIMARY KEY,
    request_id  TEXT     NOT NULL,
    user_id     TEXT     NOT NULL,
    session_id  TEXT     NOT NULL DEFAULT '',
    message_id  TEXT     NOT NULL DEFAULT '',
    source      TEXT     NOT NULL,
    from_user   INTEGER  NOT NULL,
    text        TEXT     NOT NULL,
    label       TEXT     NOT NULL DEFAULT '',
    handler     TEXT     NOT NULL DEFAULT '',
    data        TEXT,
    timestamp   TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_message_logs_user_timestamp
    ON message_logs (user_id, timestamp);
`

// SQLite stores entries in a message_logs table of a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Logger = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("msglog: open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, ddlSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("msglog: migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Log implements [Logger].
func (s *SQLite) Log(ctx context.Context, e Entry) error {
	const q = `
		INSERT INTO message_logs
		    (id, request_id, user_id, session_id, message_id, source, from_user, text, label, handler, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.RequestID, e.UserID, e.SessionID, e.MessageID, string(e.Source),
		e.FromUser, e.Text, e.Label, e.Handler, data,
		e.Timestamp.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("msglog: write entry: %w", err)
	}
	return nil
}

// Recent returns up to limit latest entries of userID, oldest first.
func (s *SQLite) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	const q = `
		SELECT id, request_id, user_id, session_id, message_id, source, from_user, text, label, handler, data, timestamp
		FROM (
		    SELECT rowid AS seq, * FROM message_logs WHERE user_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?
		)
		ORDER BY timestamp, seq`

	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("msglog: recent: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			source string
			data   sql.NullString
			ts     string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.UserID, &e.SessionID, &e.MessageID, &source,
			&e.FromUser, &e.Text, &e.Label, &e.Handler, &data, &ts); err != nil {
			return nil, fmt.Errorf("msglog: scan rows: %w", err)
		}
		e.Source = dialog.Source(source)
		if data.Valid {
			e.Data = []byte(data.String)
		}
		if e.Timestamp, err = time.Parse(tsLayout, ts); err != nil {
			return nil, fmt.Errorf("msglog: parse timestamp %q: %w", ts, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msglog: recent: %w", err)
	}
	return entries, nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
