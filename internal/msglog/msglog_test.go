package msglog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/MrWong99/dialogic/internal/msglog"
	"github.com/MrWong99/dialogic/internal/msglog/mock"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

func TestRequestAndReply(t *testing.T) {
	t.Parallel()

	dc := dialog.NewContext("u1", "привет", nil, dialog.SourceAlice)
	dc.MessageID = "4"
	dc.Raw = map[string]any{"request": map[string]any{"command": "привет"}}

	req := msglog.Request("r1", dc)
	resp := &dialog.Response{Text: "Здравствуйте!", Label: "hello", Handler: "greeting"}
	reply := msglog.Reply("r1", dc, resp)

	want := []msglog.Entry{
		{RequestID: "r1", UserID: "u1", MessageID: "4", Source: dialog.SourceAlice, FromUser: true, Text: "привет",
			Data: json.RawMessage(`{"request":{"command":"привет"}}`)},
		{RequestID: "r1", UserID: "u1", Source: dialog.SourceAlice, Text: "Здравствуйте!", Label: "hello", Handler: "greeting"},
	}
	got := []msglog.Entry{req, reply}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(msglog.Entry{}, "Timestamp")); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if req.Timestamp.IsZero() || reply.Timestamp.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	ping := dialog.NewContext("alice-user", "ping", nil, dialog.SourceAlice)
	ping.SessionIsNew = true
	notNew := dialog.NewContext("alice-user", "ping", nil, dialog.SourceAlice)
	tgPing := dialog.NewContext("tg-user", "ping", nil, dialog.SourceTelegram)
	tgPing.SessionIsNew = true
	hidden := dialog.NewContext("tester", "hello", nil, dialog.SourceText)

	tests := []struct {
		name   string
		filter msglog.Filter
		dc     *dialog.Context
		want   bool
	}{
		{name: "ping ignored", filter: msglog.Filter{DetectPings: true}, dc: ping, want: true},
		{name: "ping logged without detection", filter: msglog.Filter{}, dc: ping, want: false},
		{name: "ping in old session", filter: msglog.Filter{DetectPings: true}, dc: notNew, want: false},
		{name: "telegram ping", filter: msglog.Filter{DetectPings: true}, dc: tgPing, want: false},
		{name: "not logged id", filter: msglog.Filter{NotLogIDs: []string{"tester"}}, dc: hidden, want: true},
		{name: "other id", filter: msglog.Filter{NotLogIDs: []string{"someone"}}, dc: hidden, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.filter.Ignore(msglog.Request("r", tt.dc), tt.dc)
			if got != tt.want {
				t.Errorf("Ignore: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFiltered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := &mock.Logger{}
	f := msglog.NewFiltered(backend, msglog.Filter{DetectPings: true, NotLogIDs: []string{"tester"}})

	ping := dialog.NewContext("u", "ping", nil, dialog.SourceAlice)
	ping.SessionIsNew = true
	msg := dialog.NewContext("u", "hello", nil, dialog.SourceAlice)

	for _, dc := range []*dialog.Context{ping, msg} {
		if err := f.LogFor(ctx, msglog.Request("r", dc), dc); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Log(ctx, msglog.Entry{UserID: "tester", Text: "x"}); err != nil {
		t.Fatal(err)
	}

	got := backend.Entries()
	if len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("entries = %+v, want only the hello message", got)
	}
}

func TestSlog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := msglog.NewSlog(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := l.Log(context.Background(), msglog.Entry{RequestID: "r1", UserID: "u", Text: "hi", Handler: "greet"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"message sent", "request_id=r1", "handler=greet"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
}

func TestSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := msglog.OpenSQLite(ctx, filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []msglog.Entry{
		{ID: "1", RequestID: "a", UserID: "u", Source: dialog.SourceText, FromUser: true, Text: "one", Timestamp: base},
		{ID: "2", RequestID: "a", UserID: "u", Source: dialog.SourceText, Text: "two", Label: "l", Handler: "h", Timestamp: base.Add(time.Second)},
		{ID: "3", RequestID: "b", UserID: "u", Source: dialog.SourceText, FromUser: true, Text: "three",
			Data: json.RawMessage(`{"k":1}`), Timestamp: base.Add(2 * time.Second)},
		{ID: "4", RequestID: "c", UserID: "other", Source: dialog.SourceText, FromUser: true, Text: "four", Timestamp: base},
	}
	for _, e := range entries {
		if err := s.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	got, err := s.Recent(ctx, "u", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff(entries[1:3], got); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := msglog.Open(ctx, msglog.Config{Backend: "none"}, nil)
	if err != nil || l != nil {
		t.Fatalf("Open none = %v, %v; want nil, nil", l, err)
	}

	l, err = msglog.Open(ctx, msglog.Config{Backend: "memory", Filter: msglog.Filter{NotLogIDs: []string{"x"}}}, nil)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	_ = l.Log(ctx, msglog.Entry{UserID: "x"})
	_ = l.Log(ctx, msglog.Entry{UserID: "y"})
	if n := len(l.Unwrap().(*msglog.Memory).Entries()); n != 1 {
		t.Fatalf("memory holds %d entries, want 1", n)
	}

	for _, cfg := range []msglog.Config{
		{Backend: "sqlite"},
		{Backend: "postgres"},
		{Backend: "mongo"},
	} {
		if _, err := msglog.Open(ctx, cfg, nil); err == nil {
			t.Errorf("Open(%q): expected error", cfg.Backend)
		}
	}
	if _, err := msglog.Open(ctx, msglog.Config{Backend: "postgres", DSN: "postgres://x"}, nil); err == nil {
		t.Error("Open postgres without constructor: expected error")
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := &mock.Logger{LogErr: context.DeadlineExceeded}
	g := msglog.NewGuard(msglog.NewFiltered(backend, msglog.Filter{}))

	dc := dialog.NewContext("u", "hi", nil, dialog.SourceText)
	g.LogFor(ctx, msglog.Request("r", dc), dc)
	if !g.IsDegraded() {
		t.Fatal("guard not degraded after a failed write")
	}

	backend.LogErr = nil
	g.LogFor(ctx, msglog.Request("r", dc), dc)
	if g.IsDegraded() {
		t.Fatal("guard still degraded after a successful write")
	}
	if n := len(backend.Entries()); n != 2 {
		t.Fatalf("backend saw %d entries, want 2", n)
	}

	var nilGuard *msglog.Guard
	nilGuard.LogFor(ctx, msglog.Request("r", dc), dc)
	msglog.NewGuard(nil).LogFor(ctx, msglog.Request("r", dc), dc)
}
