// Package msglog records the conversation: one [Entry] for every inbound
// message and one for every reply.
//
// Backends implement [Logger]. [Filtered] drops entries that should never
// reach a log, such as the health-check pings voice platforms send on a
// schedule. All implementations are safe for concurrent use.
package msglog

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Entry is one logged message.
type Entry struct {
	// ID is unique per entry.
	ID string `json:"id"`

	// RequestID is shared by a request and the reply to it.
	RequestID string `json:"request_id"`

	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Source    dialog.Source `json:"source"`

	// FromUser is true for inbound messages.
	FromUser bool   `json:"from_user"`
	Text     string `json:"text"`

	// Label and Handler are copied from the reply.
	Label   string `json:"label,omitempty"`
	Handler string `json:"handler,omitempty"`

	// Data is the platform payload, if it could be encoded.
	Data json.RawMessage `json:"data,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Logger persists entries.
type Logger interface {
	Log(ctx context.Context, e Entry) error
}

// Request returns the entry of an inbound message.
func Request(requestID string, dc *dialog.Context) Entry {
	e := Entry{
		RequestID: requestID,
		UserID:    dc.UserID,
		MessageID: dc.MessageID,
		Source:    dc.Source,
		FromUser:  true,
		Text:      dc.Text,
		Timestamp: dc.Timestamp,
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if dc.Raw != nil {
		if data, err := json.Marshal(dc.Raw); err == nil {
			e.Data = data
		}
	}
	return e
}

// Reply returns the entry of the reply resp to dc.
func Reply(requestID string, dc *dialog.Context, resp *dialog.Response) Entry {
	return Entry{
		RequestID: requestID,
		UserID:    dc.UserID,
		Source:    dc.Source,
		Text:      resp.Text,
		Label:     resp.Label,
		Handler:   resp.Handler,
		Timestamp: time.Now(),
	}
}

// Filter selects entries that are not logged.
type Filter struct {
	// DetectPings skips the "ping" messages Alice sends to check that a
	// skill is alive. They arrive as the first message of a new session.
	DetectPings bool `yaml:"detect_pings"`

	// NotLogIDs lists user ids whose messages are never logged.
	NotLogIDs []string `yaml:"not_log_ids"`
}

// Ignore reports whether e, logged for dc, should be dropped.
func (f Filter) Ignore(e Entry, dc *dialog.Context) bool {
	if slices.Contains(f.NotLogIDs, e.UserID) {
		return true
	}
	return f.DetectPings && IsPing(dc)
}

// IsPing reports whether dc is an Alice health check.
func IsPing(dc *dialog.Context) bool {
	return dc != nil && dc.Source == dialog.SourceAlice && dc.SessionIsNew && dc.Text == "ping"
}

// Filtered applies a [Filter] before delegating to a backend.
type Filtered struct {
	next   Logger
	filter Filter
}

// NewFiltered wraps next.
func NewFiltered(next Logger, f Filter) *Filtered {
	return &Filtered{next: next, filter: f}
}

// LogFor logs e unless the filter drops it.
func (f *Filtered) LogFor(ctx context.Context, e Entry, dc *dialog.Context) error {
	if f.filter.Ignore(e, dc) {
		return nil
	}
	return f.next.Log(ctx, e)
}

// Log implements [Logger]. Ping detection needs the context, so only the
// user id filter applies here.
func (f *Filtered) Log(ctx context.Context, e Entry) error {
	return f.LogFor(ctx, e, nil)
}

// Slog writes entries to a structured logger. It is the default backend
// when no database is configured.
type Slog struct {
	logger *slog.Logger
}

// NewSlog returns a logger writing to l, or to [slog.Default] when l is nil.
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{logger: l}
}

// Log implements [Logger].
func (s *Slog) Log(ctx context.Context, e Entry) error {
	msg := "message received"
	if !e.FromUser {
		msg = "message sent"
	}
	s.logger.InfoContext(ctx, msg,
		"request_id", e.RequestID,
		"user_id", e.UserID,
		"source", e.Source,
		"text", e.Text,
		"label", e.Label,
		"handler", e.Handler,
	)
	return nil
}

// Memory keeps entries in process memory.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns an empty in-memory log.
func NewMemory() *Memory { return &Memory{} }

// Log implements [Logger].
func (m *Memory) Log(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the logged entries in order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Compile-time interface assertions.
var (
	_ Logger = (*Filtered)(nil)
	_ Logger = (*Slog)(nil)
	_ Logger = (*Memory)(nil)
)
