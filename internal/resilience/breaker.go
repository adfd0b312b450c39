// Package resilience keeps dialog turns answering when a remote
// collaborator misbehaves: storage backends, language models and embedding
// services.
//
// [Breaker] stops calling a dependency after consecutive failures and lets
// a single probe through once the cool-down has passed. [Fallback] tries a
// list of interchangeable providers, each behind its own breaker.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the dependency while a
// [Breaker] is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cool-down
	// has passed.
	StateOpen

	// StateHalfOpen lets one probe at a time through. Enough successful
	// probes close the breaker; one failure opens it again.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take their defaults.
type BreakerConfig struct {
	// Name labels log lines and state change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close.
	// Default: 1.
	Probes int

	// OnStateChange is called after every transition, outside the lock.
	// Default: log the transition.
	OnStateChange func(name string, from, to State)

	// Now returns the current time. Default: [time.Now].
	Now func() time.Time
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probing   bool
	successes int
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = logStateChange
	}
	return &Breaker{cfg: cfg}
}

func logStateChange(name string, from, to State) {
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", name, "from", from, "to", to)
}

// Do runs fn unless the breaker is open. A context that is already done
// fails without calling fn. Errors caused by the caller's context ending
// do not count as failures of the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.release(probe, err != nil && ctx.Err() == nil, err == nil)
	return err
}

// Call runs fn through b and returns its result.
func Call[R any](ctx context.Context, b *Breaker, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// acquire reserves a call slot. probe reports whether the call is the
// half-open probe.
func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	var from State
	changed := false
	defer func() {
		b.mu.Unlock()
		if changed {
			b.cfg.OnStateChange(b.cfg.Name, from, StateHalfOpen)
		}
	}()

	switch b.state {
	case StateOpen:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrCircuitOpen
		}
		from, changed = b.state, true
		b.state = StateHalfOpen
		b.successes = 0
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) release(probe, failed, succeeded bool) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.probing = false
	}
	switch {
	case failed && (probe || b.state == StateClosed):
		b.failures++
		if probe || b.failures >= b.cfg.MaxFailures {
			b.state = StateOpen
			b.openedAt = b.cfg.Now()
		}
	case succeeded && probe:
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.state = StateClosed
			b.failures = 0
		}
	case succeeded && b.state == StateClosed:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// passed reports [StateHalfOpen]; the transition happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probing = false
	b.mu.Unlock()
	if from != StateClosed {
		b.cfg.OnStateChange(b.cfg.Name, from, StateClosed)
	}
}
