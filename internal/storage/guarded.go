package storage

import (
	"context"

	"github.com/MrWong99/dialogic/internal/resilience"
)

// Guarded fails fast with [resilience.ErrCircuitOpen] after repeated
// failures of the wrapped store.
type Guarded struct {
	store   Store
	breaker *resilience.Breaker
}

// NewGuarded wraps s in a circuit breaker configured by cfg.
func NewGuarded(s Store, cfg resilience.BreakerConfig) *Guarded {
	return &Guarded{store: s, breaker: resilience.NewBreaker(cfg)}
}

// Get implements [Store].
func (g *Guarded) Get(ctx context.Context, id string) (map[string]any, error) {
	return resilience.Call(ctx, g.breaker, func(ctx context.Context) (map[string]any, error) {
		return g.store.Get(ctx, id)
	})
}

// Set implements [Store].
func (g *Guarded) Set(ctx context.Context, id string, obj map[string]any) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.store.Set(ctx, id, obj)
	})
}

// State returns the breaker state.
func (g *Guarded) State() resilience.State { return g.breaker.State() }

// Ping implements [Pinger]. It bypasses the breaker.
func (g *Guarded) Ping(ctx context.Context) error { return Ping(ctx, g.store) }

// Close releases the wrapped store.
func (g *Guarded) Close() error { return Close(g.store) }
