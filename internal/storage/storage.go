// Package storage persists user objects: the JSON-like state a dialog
// manager keeps for every user between messages.
//
// Every backend implements [Store]. Unknown user ids read as an empty
// object. Backends that talk to a remote service are wrapped in a circuit
// breaker by [Open] so a failing database does not stall every turn.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/internal/resilience"
)

// ErrUnknownBackend is returned by [Open] for an unregistered backend name.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// Store reads and writes user objects.
type Store interface {
	// Get returns the object stored for id, or an empty map.
	Get(ctx context.Context, id string) (map[string]any, error)

	// Set replaces the object stored for id.
	Set(ctx context.Context, id string, obj map[string]any) error
}

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendS3       = "s3"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of memory, file, sqlite, postgres, redis, s3.
	// Default: memory.
	Backend string `yaml:"backend"`

	// Path is the directory of the file backend or the database file of
	// the sqlite backend.
	Path string `yaml:"path"`

	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`

	// Table names the SQL table. Default: user_objects.
	Table string `yaml:"table"`

	Redis RedisConfig `yaml:"redis"`
	S3    S3Config    `yaml:"s3"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around remote backends.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Validate reports configuration problems of the selected backend.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case "", BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s backend", c.Backend))
		}
	case BackendPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend))
	}
	return errors.Join(errs...)
}

// Open creates the configured store. Remote backends are guarded by a
// circuit breaker and every backend records storage metrics. The returned
// store should be released with [Close].
func Open(ctx context.Context, cfg Config, metrics *observe.Metrics) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		s      Store
		err    error
		remote bool
	)
	backend := cfg.Backend
	switch backend {
	case "", BackendMemory:
		backend = BackendMemory
		s = NewMemory()
	case BackendFile:
		s, err = NewFile(cfg.Path)
	case BackendSQLite:
		s, err = OpenSQLite(ctx, cfg.Path, cfg.Table)
	case BackendPostgres:
		s, err = OpenPostgres(ctx, cfg.DSN, cfg.Table)
		remote = true
	case BackendRedis:
		s, err = OpenRedis(ctx, cfg.Redis)
		remote = true
	case BackendS3:
		s, err = OpenS3(cfg.S3)
		remote = true
	}
	if err != nil {
		return nil, err
	}
	if remote {
		s = NewGuarded(s, resilience.BreakerConfig{
			Name:        "storage-" + backend,
			MaxFailures: cfg.Breaker.MaxFailures,
			Cooldown:    cfg.Breaker.Cooldown,
		})
	}
	return NewInstrumented(s, backend, metrics), nil
}

// Close releases the resources of s when it holds any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Ping checks the connection of s when it supports it.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func encode(obj map[string]any) ([]byte, error) {
	if obj == nil {
		obj = map[string]any{}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("storage: encode user object: %w", err)
	}
	return data, nil
}

func decode(data []byte) (map[string]any, error) {
	obj := map[string]any{}
	if len(data) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("storage: decode user object: %w", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}
