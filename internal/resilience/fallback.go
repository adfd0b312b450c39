package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every provider of a [Fallback] failed or
// was skipped by its breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker given to every provider of a
// [Fallback]. Its Name is replaced by the provider name.
type FallbackConfig struct {
	Breaker BreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Fallback holds a primary provider and fallbacks of the same type, tried
// in order. Members are added during setup; [Try] may then be called
// concurrently.
type Fallback[T any] struct {
	cfg     FallbackConfig
	members []member[T]
}

// NewFallback returns a group whose first member is primary.
func NewFallback[T any](primaryName string, primary T, cfg FallbackConfig) *Fallback[T] {
	f := &Fallback[T]{cfg: cfg}
	f.Add(primaryName, primary)
	return f
}

// Add appends a fallback provider.
func (f *Fallback[T]) Add(name string, v T) {
	bc := f.cfg.Breaker
	bc.Name = name
	f.members = append(f.members, member[T]{name: name, value: v, breaker: NewBreaker(bc)})
}

// Primary returns the first member.
func (f *Fallback[T]) Primary() T { return f.members[0].value }

// Names lists the members in the order they are tried.
func (f *Fallback[T]) Names() []string {
	names := make([]string, len(f.members))
	for i, m := range f.members {
		names[i] = m.name
	}
	return names
}

// Try calls fn with each member until one succeeds. Members with an open
// breaker are skipped. When ctx ends, Try stops and returns its error.
// Otherwise the error wraps [ErrAllFailed] and every member's failure.
func Try[T, R any](ctx context.Context, f *Fallback[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range f.members {
		r, err := Call(ctx, m.breaker, func(ctx context.Context) (R, error) {
			return fn(ctx, m.value)
		})
		if err == nil {
			return r, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.DebugContext(ctx, "provider skipped, circuit open", "provider", m.name)
		} else {
			slog.WarnContext(ctx, "provider failed, trying next", "provider", m.name, "error", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
