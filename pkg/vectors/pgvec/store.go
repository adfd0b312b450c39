// Package pgvec persists word-vector tables in PostgreSQL using the
// pgvector extension.
package pgvec

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/dialogic/pkg/vectors"
)

// DefaultTable is the table name used when none is configured.
const DefaultTable = "word_vectors"

// Store reads and writes word vectors in a single PostgreSQL table.
// All methods are safe for concurrent use.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// NewStore connects to dsn, registers pgvector types on every connection,
// and creates the vector table when missing. dimensions must match the
// length of the stored vectors.
func NewStore(ctx context.Context, dsn, table string, dimensions int) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("pgvec: dimensions must be positive, got %d", dimensions)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvec: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgvec: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvec: ping: %w", err)
	}

	s := &Store{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := s.migrate(ctx, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvec: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context, dimensions int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		    word      TEXT PRIMARY KEY,
		    embedding vector(%d) NOT NULL
		)`, s.table, dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the whole table into memory.
func (s *Store) Load(ctx context.Context) (vectors.Map, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT word, embedding FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("pgvec: load: %w", err)
	}
	defer rows.Close()

	m := make(vectors.Map)
	for rows.Next() {
		var (
			word string
			vec  pgvector.Vector
		)
		if err := rows.Scan(&word, &vec); err != nil {
			return nil, fmt.Errorf("pgvec: scan: %w", err)
		}
		m[word] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvec: rows: %w", err)
	}
	return m, nil
}

// Save upserts every vector of m in one batch.
func (s *Store) Save(ctx context.Context, m vectors.Map) error {
	if len(m) == 0 {
		return nil
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (word, embedding) VALUES ($1, $2)
		ON CONFLICT (word) DO UPDATE SET embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for word, vec := range m {
		batch.Queue(q, word, pgvector.NewVector(vec))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvec: save: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
