// Package websocket serves a dialog over WebSocket connections. Each
// connection is one session: the client sends {"text": ...} frames and
// receives one JSON reply per frame.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Inbound is a client frame.
type Inbound struct {
	Text string `json:"text"`
}

// Link is a titled URL in an [Outbound] frame.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Outbound is the reply to one [Inbound] frame.
type Outbound struct {
	Text       string   `json:"text"`
	Voice      string   `json:"voice,omitempty"`
	Suggests   []string `json:"suggests,omitempty"`
	Links      []Link   `json:"links,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	EndSession bool     `json:"end_session,omitempty"`
}

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	responder      adapter.Responder
	metrics        *observe.Metrics
	originPatterns []string
}

var _ http.Handler = (*Handler)(nil)

// Option configures a [Handler].
type Option func(*Handler)

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithOriginPatterns allows cross-origin connections from hosts matching
// the given patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.originPatterns = patterns }
}

// New returns a handler answering with r.
func New(r adapter.Responder, opts ...Option) *Handler {
	h := &Handler{responder: r}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ServeHTTP accepts the connection and serves it until the client leaves
// or the dialog ends the session. The user id is taken from the user_id
// query parameter; without one every connection is a fresh user.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.WarnContext(r.Context(), "websocket: accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = uuid.NewString()
	}

	ctx := r.Context()
	observeSource := metric.WithAttributes(observe.Attr("source", string(dialog.SourceWebSocket)))
	h.metrics.ActiveSessions.Add(ctx, 1, observeSource)
	defer h.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1, observeSource)

	if err := h.serve(ctx, conn, adapter.UserID(dialog.SourceWebSocket, userID)); err != nil {
		observe.Logger(ctx).Warn("websocket: session ended with error", "user_id", userID, "error", err)
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, userID string) error {
	first := true
	for {
		var in Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}

		dc := dialog.NewContext(userID, in.Text, nil, dialog.SourceWebSocket)
		dc.SessionIsNew = first
		dc.Raw = in
		first = false

		resp, err := h.responder.Respond(ctx, dc)
		if err != nil {
			return err
		}
		if resp == nil || resp.NoResponse {
			continue
		}
		out := MakeOutbound(resp)
		if err := wsjson.Write(ctx, conn, out); err != nil {
			return err
		}
		if out.EndSession {
			return nil
		}
	}
}

// MakeOutbound renders resp as a reply frame.
func MakeOutbound(resp *dialog.Response) Outbound {
	out := Outbound{
		Text:       resp.Text,
		Suggests:   resp.Suggests,
		ImageURL:   resp.ImageURL,
		EndSession: resp.HasExitCommand(),
	}
	if v := resp.VoiceText(); v != resp.Text {
		out.Voice = v
	}
	for _, l := range resp.Links {
		out.Links = append(out.Links, Link{Title: l.Title, URL: l.URL})
	}
	return out
}

func isClosed(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
