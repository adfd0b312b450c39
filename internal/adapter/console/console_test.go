package console_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/MrWong99/dialogic/internal/adapter/console"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echo struct {
	got []*dialog.Context
	err error
}

func (e *echo) Respond(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
	e.got = append(e.got, dc)
	if e.err != nil {
		return nil, e.err
	}
	resp := dialog.NewResponse("echo: "+dc.Text, "one", "two")
	if dc.Text == "bye" {
		resp.Commands = []string{dialog.CommandExit}
	}
	return resp, nil
}

func TestConsole_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantTexts []string
	}{
		{name: "eof", input: "hi\nthere\n", wantTexts: []string{"hi", "there"}},
		{name: "exit command", input: "hi\n/exit\nignored\n", wantTexts: []string{"hi"}},
		{name: "exit response", input: "bye\nignored\n", wantTexts: []string{"bye"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &echo{}
			var out strings.Builder
			c := console.New(strings.NewReader(tt.input), &out, e, console.WithUserID("me"))
			if err := c.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			var texts []string
			for _, dc := range e.got {
				texts = append(texts, dc.Text)
				if dc.UserID != "text__me" {
					t.Errorf("UserID = %q, want text__me", dc.UserID)
				}
			}
			if diff := cmp.Diff(tt.wantTexts, texts); diff != "" {
				t.Errorf("texts mismatch (-want +got):\n%s", diff)
			}
			if !e.got[0].SessionIsNew {
				t.Errorf("first message is not a new session")
			}
			if !strings.Contains(out.String(), "echo: "+tt.wantTexts[0]) {
				t.Errorf("output %q lacks the first reply", out.String())
			}
		})
	}
}

func TestConsole_RespondError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var out strings.Builder
	c := console.New(strings.NewReader("hi\n"), &out, &echo{err: boom})
	if err := c.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want %v", err, boom)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	resp := dialog.NewResponse("hello", "a", "b")
	resp.AddLink("site", "https://example.com", false)
	want := "hello\n  site: https://example.com\n[a] [b]\n"
	if got := console.Render(resp); got != want {
		t.Errorf("Render: got %q, want %q", got, want)
	}
}
