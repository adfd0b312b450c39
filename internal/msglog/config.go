package msglog

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Backend names.
const (
	BackendNone     = "none"
	BackendSlog     = "slog"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects a backend and its filter.
type Config struct {
	// Backend is one of none, slog, memory, sqlite, postgres. Default: slog.
	Backend string `yaml:"backend"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`

	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`

	Filter `yaml:",inline"`
}

// Validate reports configuration problems.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendNone, BackendSlog, BackendMemory:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return errors.New("message_log.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("message_log.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("message_log.backend: unknown backend %q", c.Backend)
	}
	return nil
}

// OpenFunc opens an external backend. The postgres backend lives in a
// subpackage that imports this one, so the caller supplies its constructor.
type OpenFunc func(ctx context.Context, cfg Config) (Logger, error)

// Open creates the configured logger wrapped in its filter. It returns nil
// for the none backend. openPostgres may be nil when postgres is not used.
func Open(ctx context.Context, cfg Config, openPostgres OpenFunc) (*Filtered, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		l   Logger
		err error
	)
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendSlog:
		l = NewSlog(nil)
	case BackendMemory:
		l = NewMemory()
	case BackendSQLite:
		l, err = OpenSQLite(ctx, cfg.Path)
	case BackendPostgres:
		if openPostgres == nil {
			return nil, errors.New("msglog: postgres backend is not available")
		}
		l, err = openPostgres(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return NewFiltered(l, cfg.Filter), nil
}

// Unwrap returns the wrapped backend.
func (f *Filtered) Unwrap() Logger { return f.next }

// Close releases the wrapped backend when it holds resources.
func (f *Filtered) Close() error {
	if c, ok := f.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
