// Package postgres stores the message log in a PostgreSQL message_logs
// table.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Log(ctx, entry)
//	recent, _ := store.Recent(ctx, userID, 20)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMessageLogs = `
CREATE TABLE IF NOT EXISTS message_logs (
    id          TEXT         PRIMARY KEY,
    request_id  TEXT         NOT NULL,
    user_id     TEXT         NOT NULL,
    session_id  TEXT         NOT NULL DEFAULT '',
    message_id  TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL,
    from_user   BOOLEAN      NOT NULL,
    text        TEXT         NOT NULL,
    label       TEXT         NOT NULL DEFAULT '',
    handler     TEXT         NOT NULL DEFAULT '',
    data        JSONB,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_message_logs_user_timestamp
    ON message_logs (user_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_message_logs_request_id
    ON message_logs (request_id);

CREATE INDEX IF NOT EXISTS idx_message_logs_fts
    ON message_logs USING GIN (to_tsvector('simple', text));
`

// Migrate creates the message_logs table and its indexes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlMessageLogs); err != nil {
		return fmt.Errorf("migrate: message_logs: %w", err)
	}
	return nil
}
