package storage

import (
	"context"
	"time"

	"github.com/MrWong99/dialogic/internal/observe"
)

// Instrumented records latency and errors of every call of the wrapped
// store.
type Instrumented struct {
	Store
	backend string
	metrics *observe.Metrics
}

// NewInstrumented wraps s. A nil metrics uses [observe.DefaultMetrics].
func NewInstrumented(s Store, backend string, metrics *observe.Metrics) *Instrumented {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Instrumented{Store: s, backend: backend, metrics: metrics}
}

// Get implements [Store].
func (s *Instrumented) Get(ctx context.Context, id string) (map[string]any, error) {
	start := time.Now()
	obj, err := s.Store.Get(ctx, id)
	s.metrics.RecordStorage(ctx, s.backend, "get", time.Since(start), err)
	return obj, err
}

// Set implements [Store].
func (s *Instrumented) Set(ctx context.Context, id string, obj map[string]any) error {
	start := time.Now()
	err := s.Store.Set(ctx, id, obj)
	s.metrics.RecordStorage(ctx, s.backend, "set", time.Since(start), err)
	return err
}

// Ping implements [Pinger].
func (s *Instrumented) Ping(ctx context.Context) error { return Ping(ctx, s.Store) }

// Close releases the wrapped store.
func (s *Instrumented) Close() error { return Close(s.Store) }

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store { return s.Store }
