// Package alice serves Yandex Alice skills over the Dialogs webhook
// protocol.
package alice

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// maxBodyBytes bounds a webhook body. Alice requests are a few kilobytes.
const maxBodyBytes = 1 << 20

// NativeState selects where the user object lives when it is kept by the
// platform instead of the configured storage.
type NativeState string

// Native state modes.
const (
	// StateOff keeps user objects in storage.
	StateOff NativeState = ""

	// StateSession keeps the object in session_state.
	StateSession NativeState = "session"

	// StateUser keeps the object in user_state_update, falling back to
	// application_state for anonymous users.
	StateUser NativeState = "user"

	// StateApplication keeps the object in application_state.
	StateApplication NativeState = "application"

	// StateAll exposes all three scopes as the keys session, user and
	// application of the user object.
	StateAll NativeState = "all"
)

// ParseNativeState validates a configured mode.
func ParseNativeState(s string) (NativeState, error) {
	switch ns := NativeState(s); ns {
	case StateOff, StateSession, StateUser, StateApplication, StateAll:
		return ns, nil
	}
	return "", fmt.Errorf("alice: unknown native state %q", s)
}

// Handler answers Alice webhooks.
type Handler struct {
	responder   adapter.Responder
	nativeState NativeState
}

var _ http.Handler = (*Handler)(nil)

// Option configures a [Handler].
type Option func(*Handler)

// WithNativeState keeps user objects in Alice state instead of storage.
func WithNativeState(ns NativeState) Option {
	return func(h *Handler) { h.nativeState = ns }
}

// New returns a handler passing every request to r.
func New(r adapter.Responder, opts ...Option) *Handler {
	h := &Handler{responder: r}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dc := h.MakeContext(&req)
	resp, err := h.responder.Respond(r.Context(), dc)
	if err != nil {
		slog.ErrorContext(r.Context(), "alice: respond failed", "user_id", dc.UserID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.MakeResponse(&req, resp)); err != nil {
		slog.WarnContext(r.Context(), "alice: write response failed", "error", err)
	}
}

// MakeContext converts a webhook request. Logged-in users get an id that is
// stable across skills.
func (h *Handler) MakeContext(req *Request) *dialog.Context {
	userID := adapter.UserID(dialog.SourceAlice, req.Session.UserID)
	if req.Session.User != nil && req.Session.User.UserID != "" {
		userID = string(dialog.SourceAlice) + "_auth__" + req.Session.User.UserID
	}
	dc := dialog.NewContext(userID, req.Request.Command, nil, dialog.SourceAlice)
	dc.MessageID = fmt.Sprint(req.Session.MessageID)
	dc.SessionIsNew = req.Session.New
	dc.NLU = req.Request.NLU
	dc.Raw = req
	if h.nativeState != StateOff {
		dc.NativeState = true
		dc.UserObject = h.nativeUserObject(req)
	}
	return dc
}

func (h *Handler) nativeUserObject(req *Request) map[string]any {
	state := req.State
	if state == nil {
		state = &State{}
	}
	var obj map[string]any
	switch h.nativeState {
	case StateSession:
		obj = state.Session
	case StateApplication:
		obj = state.Application
	case StateUser:
		obj = state.User
		if req.Session.User == nil {
			obj = state.Application
		}
	case StateAll:
		obj = map[string]any{}
		for k, v := range map[string]map[string]any{
			"session":     state.Session,
			"user":        state.User,
			"application": state.Application,
		} {
			if v != nil {
				obj[k] = v
			}
		}
	}
	return dialog.CloneObject(obj)
}

// MakeResponse renders resp for req.
func (h *Handler) MakeResponse(req *Request, resp *dialog.Response) *Response {
	out := &Response{
		Version: req.Version,
		Response: ResponseBody{
			Text:       resp.Text,
			EndSession: resp.HasExitCommand(),
			Buttons:    []Button{},
		},
	}
	if voice := resp.VoiceText(); voice != resp.Text {
		out.Response.TTS = strings.ReplaceAll(voice, "\n", " ")
	}
	for _, b := range adapter.Buttons(resp) {
		out.Response.Buttons = append(out.Response.Buttons, Button{Title: b.Title, URL: b.URL, Hide: b.Hide})
	}
	switch {
	case resp.Card != nil:
		out.Response.Card = convertCard(resp.Card)
	case resp.ImageID != "":
		out.Response.Card = &Card{Type: string(dialog.CardBigImage), ImageID: resp.ImageID, Description: resp.Text}
	}
	for _, c := range resp.Commands {
		if c == dialog.CommandRequestGeolocation {
			out.Response.Directives = map[string]map[string]any{c: {}}
		}
	}
	if h.nativeState != StateOff && resp.UserObject != nil {
		h.setNativeState(req, out, resp.UserObject)
	}
	return out
}

func (h *Handler) setNativeState(req *Request, out *Response, obj map[string]any) {
	switch h.nativeState {
	case StateSession:
		out.SessionState = obj
	case StateApplication:
		out.ApplicationState = obj
	case StateUser:
		if req.Session.User == nil {
			out.ApplicationState = obj
		}
		out.UserStateUpdate = obj
	case StateAll:
		out.SessionState = subObject(obj, "session")
		out.ApplicationState = subObject(obj, "application")
		out.UserStateUpdate = subObject(obj, "user")
	}
}

func subObject(obj map[string]any, key string) map[string]any {
	m, _ := obj[key].(map[string]any)
	return m
}

func convertCard(c *dialog.Card) *Card {
	out := &Card{
		Type:        string(c.Type),
		ImageID:     c.ImageID,
		Title:       c.Title,
		Description: c.Description,
	}
	for _, it := range c.Items {
		out.Items = append(out.Items, CardItem(it))
	}
	return out
}
