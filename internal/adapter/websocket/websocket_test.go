package websocket_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/go-cmp/cmp"

	wsadapter "github.com/MrWong99/dialogic/internal/adapter/websocket"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// echo answers with the text it received and ends the session on "bye".
type echo struct {
	mu  sync.Mutex
	got []*dialog.Context
}

func (e *echo) Respond(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
	e.mu.Lock()
	e.got = append(e.got, dc)
	e.mu.Unlock()

	resp := dialog.NewResponse("you said: "+dc.Text, "again")
	if dc.Text == "bye" {
		resp.Commands = []string{dialog.CommandExit}
	}
	return resp, nil
}

func (e *echo) contexts() []*dialog.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*dialog.Context(nil), e.got...)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, text string) wsadapter.Outbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, wsadapter.Inbound{Text: text}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var out wsadapter.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	return out
}

func TestHandler_Session(t *testing.T) {
	t.Parallel()

	e := &echo{}
	srv := httptest.NewServer(wsadapter.New(e))
	defer srv.Close()

	conn := dial(t, srv.URL+"?user_id=u1")

	got := exchange(t, conn, "hello")
	want := wsadapter.Outbound{Text: "you said: hello", Suggests: []string{"again"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first reply mismatch (-want +got):\n%s", diff)
	}

	got = exchange(t, conn, "bye")
	if !got.EndSession {
		t.Errorf("EndSession = false after exit command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var extra wsadapter.Outbound
	err := wsjson.Read(ctx, conn, &extra)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("after end of session: err = %v, want normal closure", err)
	}

	ctxs := e.contexts()
	if len(ctxs) != 2 {
		t.Fatalf("responder called %d times, want 2", len(ctxs))
	}
	if !ctxs[0].SessionIsNew || ctxs[1].SessionIsNew {
		t.Errorf("SessionIsNew = %v, %v; want true, false", ctxs[0].SessionIsNew, ctxs[1].SessionIsNew)
	}
	for _, dc := range ctxs {
		if dc.UserID != "websocket__u1" || dc.Source != dialog.SourceWebSocket {
			t.Errorf("context user %q source %q", dc.UserID, dc.Source)
		}
	}
}

func TestHandler_AnonymousUsers(t *testing.T) {
	t.Parallel()

	e := &echo{}
	srv := httptest.NewServer(wsadapter.New(e))
	defer srv.Close()

	exchange(t, dial(t, srv.URL), "a")
	exchange(t, dial(t, srv.URL), "b")

	ctxs := e.contexts()
	if len(ctxs) != 2 {
		t.Fatalf("responder called %d times, want 2", len(ctxs))
	}
	if ctxs[0].UserID == ctxs[1].UserID {
		t.Errorf("anonymous connections share user id %q", ctxs[0].UserID)
	}
	if !strings.HasPrefix(ctxs[0].UserID, "websocket__") {
		t.Errorf("UserID = %q, want websocket__ prefix", ctxs[0].UserID)
	}
}

func TestMakeOutbound(t *testing.T) {
	t.Parallel()

	resp := dialog.NewResponse("text")
	resp.Voice = "voice"
	resp.AddLink("site", "https://example.com", true)
	resp.ImageURL = "https://example.com/a.png"

	want := wsadapter.Outbound{
		Text:     "text",
		Voice:    "voice",
		Links:    []wsadapter.Link{{Title: "site", URL: "https://example.com"}},
		ImageURL: "https://example.com/a.png",
	}
	if diff := cmp.Diff(want, wsadapter.MakeOutbound(resp)); diff != "" {
		t.Errorf("MakeOutbound mismatch (-want +got):\n%s", diff)
	}
}
