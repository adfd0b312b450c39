// Package connector runs one dialog turn end to end: it loads the user
// object, asks the dialog manager for a response, stores the updated
// object and records the exchange.
//
// Adapters translate platform messages into [dialog.Context] values and
// render the returned [dialog.Response]; the connector is the only place
// that touches storage.
package connector

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/dialogic/internal/manager"
	"github.com/MrWong99/dialogic/internal/msglog"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/internal/storage"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Responder is what adapters call for every inbound message.
type Responder interface {
	Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error)
}

// Connector implements [Responder] on top of a [manager.Manager]. The
// manager can be replaced while messages are being processed.
//
// All methods are safe for concurrent use.
type Connector struct {
	store          storage.Store
	manager        atomic.Pointer[managerRef]
	log            *msglog.Guard
	metrics        *observe.Metrics
	defaultMessage string
}

type managerRef struct{ m manager.Manager }

var _ Responder = (*Connector)(nil)

// Option configures a [Connector].
type Option func(*Connector)

// WithMessageLog records every request and reply in l.
func WithMessageLog(l *msglog.Filtered) Option {
	return func(c *Connector) { c.log = msglog.NewGuard(l) }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// WithDefaultMessage sets the answer used when the manager declines.
// Default: [manager.DefaultMessage].
func WithDefaultMessage(text string) Option {
	return func(c *Connector) { c.defaultMessage = text }
}

// New returns a connector that answers with m and keeps user objects in
// store.
func New(store storage.Store, m manager.Manager, opts ...Option) *Connector {
	c := &Connector{
		store:          store,
		defaultMessage: manager.DefaultMessage,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.SetManager(m)
	return c
}

// SetManager replaces the dialog manager. Turns in flight finish with the
// manager they started with.
func (c *Connector) SetManager(m manager.Manager) {
	c.manager.Store(&managerRef{m: m})
}

// Manager returns the current dialog manager.
func (c *Connector) Manager() manager.Manager {
	return c.manager.Load().m
}

// MessageLogDegraded reports whether the last message log write failed.
func (c *Connector) MessageLogDegraded() bool { return c.log.IsDegraded() }

// Respond runs one turn. dc.UserObject is replaced by the stored object
// unless dc carries native state. The updated object is written back only
// when the manager returned one that differs from what was loaded.
func (c *Connector) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	ctx, span := observe.StartSpan(ctx, "connector.respond")
	defer span.End()
	start := time.Now()

	if dc.Timestamp.IsZero() {
		dc.Timestamp = start
	}
	if !dc.NativeState {
		obj, err := c.store.Get(ctx, dc.UserID)
		if err != nil {
			return nil, fmt.Errorf("connector: load user %q: %w", dc.UserID, err)
		}
		dc.UserObject = obj
	}
	old := dialog.CloneObject(dc.UserObject)

	requestID := uuid.NewString()
	ctx = observe.WithLogAttrs(ctx, "request_id", requestID, "user_id", dc.UserID)
	c.logEntry(ctx, msglog.Request(requestID, dc), dc)

	resp, err := c.Manager().Respond(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("connector: respond to %q: %w", dc.UserID, err)
	}
	if resp == nil {
		resp = dialog.NewResponse(c.defaultMessage)
		resp.Handler = "default"
	}

	if resp.UserObject != nil && !reflect.DeepEqual(resp.UserObject, old) && !dc.NativeState {
		if err := c.store.Set(ctx, dc.UserID, resp.UserObject); err != nil {
			return nil, fmt.Errorf("connector: store user %q: %w", dc.UserID, err)
		}
	}

	c.logEntry(ctx, msglog.Reply(requestID, dc, resp), dc)

	elapsed := time.Since(start)
	c.metrics.RecordTurn(ctx, string(dc.Source), resp.Handler, elapsed)
	observe.Logger(ctx).Info("turn processed",
		"source", dc.Source,
		"text", dc.Text,
		"response", resp.Text,
		"handler", resp.Handler,
		"label", resp.Label,
		"duration", elapsed,
	)
	return resp, nil
}

func (c *Connector) logEntry(ctx context.Context, e msglog.Entry, dc *dialog.Context) {
	e.ID = uuid.NewString()
	c.log.LogFor(ctx, e, dc)
}
