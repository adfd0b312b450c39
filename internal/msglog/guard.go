package msglog

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Guard makes logging non-fatal. Failures of the wrapped logger are logged
// at warn and swallowed so that an unavailable log database never fails a
// turn. [Guard.IsDegraded] reports whether the last write failed.
//
// All methods are safe for concurrent use.
type Guard struct {
	next     *Filtered
	degraded atomic.Bool
}

// NewGuard wraps next. A nil next yields a guard that drops everything.
func NewGuard(next *Filtered) *Guard {
	return &Guard{next: next}
}

// LogFor writes e through the filter. It never returns an error.
func (g *Guard) LogFor(ctx context.Context, e Entry, dc *dialog.Context) {
	if g == nil || g.next == nil {
		return
	}
	if err := g.next.LogFor(ctx, e, dc); err != nil {
		g.degraded.Store(true)
		slog.WarnContext(ctx, "message log: write failed, swallowing error",
			"request_id", e.RequestID,
			"user_id", e.UserID,
			"error", err,
		)
		return
	}
	g.degraded.Store(false)
}

// IsDegraded reports whether the most recent write failed.
func (g *Guard) IsDegraded() bool {
	return g != nil && g.degraded.Load()
}
