package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix is prepended to user ids. Default: "dialogic:user:".
	Prefix string `yaml:"prefix"`

	// TTL expires idle users. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultRedisPrefix is the default key prefix of the redis backend.
const DefaultRedisPrefix = "dialogic:user:"

// Redis keeps user objects as JSON strings.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// OpenRedis connects to the server and pings it.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("storage: redis: ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Get implements [Store].
func (s *Redis) Get(ctx context.Context, id string) (map[string]any, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: redis get %q: %w", id, err)
	}
	return decode(data)
}

// Set implements [Store].
func (s *Redis) Set(ctx context.Context, id string, obj map[string]any) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storage: redis set %q: %w", id, err)
	}
	return nil
}

// Ping implements [Pinger].
func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Close closes the client.
func (s *Redis) Close() error { return s.client.Close() }
