// Package mock provides a test double for [msglog.Logger].
//
// Typical usage:
//
//	log := &mock.Logger{}
//	// inject log into the system under test …
//	if got := len(log.Entries()); got != 2 {
//	    t.Errorf("expected 2 entries, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/dialogic/internal/msglog"
)

// Logger records every entry. It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	entries []msglog.Entry

	// LogErr is returned by [Logger.Log] when non-nil. The entry is still
	// recorded.
	LogErr error
}

var _ msglog.Logger = (*Logger)(nil)

// Log implements [msglog.Logger].
func (l *Logger) Log(_ context.Context, e msglog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return l.LogErr
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []msglog.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]msglog.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset clears the recorded entries.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
