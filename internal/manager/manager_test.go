package manager_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/manager"
	"github.com/MrWong99/dialogic/internal/manager/mock"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

func respond(t *testing.T, m manager.Manager, dc *dialog.Context) *dialog.Response {
	t.Helper()
	resp, err := m.Respond(context.Background(), dc)
	if err != nil {
		t.Fatalf("Respond(%q): %v", dc.Text, err)
	}
	return resp
}

func TestCascade_FirstAnswerWins(t *testing.T) {
	t.Parallel()

	declining := &mock.Manager{}
	first := &mock.Manager{Response: dialog.NewResponse("first")}
	second := &mock.Manager{Response: dialog.NewResponse("second")}
	c, err := manager.NewCascade([]manager.Named{
		{Name: "declining", Manager: declining},
		{Name: "first", Manager: first},
		{Name: "second", Manager: second},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp := respond(t, c, dialog.NewContext("u1", "hi", nil, dialog.SourceText))
	if resp.Text != "first" || resp.Handler != "first" {
		t.Errorf("got (%q, %q), want (first, first)", resp.Text, resp.Handler)
	}
	if got := []int{declining.CallCount(), first.CallCount(), second.CallCount()}; !cmp.Equal(got, []int{1, 1, 0}) {
		t.Errorf("call counts = %v, want [1 1 0]", got)
	}
	if diff := cmp.Diff([]string{"declining", "first", "second"}, c.Managers()); diff != "" {
		t.Errorf("Managers() mismatch (-want +got):\n%s", diff)
	}
}

func TestCascade_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []manager.CascadeOption
		want string
	}{
		{"default", nil, manager.DefaultMessage},
		{"custom", []manager.CascadeOption{manager.WithDefaultMessage("I don't understand")}, "I don't understand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := manager.NewCascade([]manager.Named{{Name: "m", Manager: &mock.Manager{}}}, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			resp := respond(t, c, dialog.NewContext("u1", "hi", nil, dialog.SourceText))
			if resp == nil || resp.Text != tt.want {
				t.Errorf("got %+v, want text %q", resp, tt.want)
			}
		})
	}
}

func TestCascade_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	after := &mock.Manager{Response: dialog.NewResponse("never")}
	c, err := manager.NewCascade([]manager.Named{
		{Name: "broken", Manager: &mock.Manager{Err: boom}},
		{Name: "after", Manager: after},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Respond(context.Background(), dialog.NewContext("u1", "hi", nil, dialog.SourceText))
	if !errors.Is(err, boom) {
		t.Errorf("Respond error = %v, want %v", err, boom)
	}
	if after.CallCount() != 0 {
		t.Error("cascade continued after an error")
	}
}

func TestNewCascade_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := manager.NewCascade(nil); err == nil {
		t.Error("NewCascade(nil): expected error")
	}
	if _, err := manager.NewCascade([]manager.Named{{Name: "nil"}}); err == nil {
		t.Error("NewCascade(nil member): expected error")
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	m := manager.Func(func(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
		return dialog.NewResponse("echo: " + dc.Text), nil
	})
	if got := respond(t, m, dialog.NewContext("u1", "hi", nil, dialog.SourceText)).Text; got != "echo: hi" {
		t.Errorf("got %q, want %q", got, "echo: hi")
	}
}

func TestGreetAndHelp(t *testing.T) {
	t.Parallel()

	g := &manager.GreetAndHelp{
		GreetingMessage: "Привет! Я бот.",
		HelpMessage:     "Я умею здороваться.",
		ExitMessage:     "Всего доброго!",
	}
	tests := []struct {
		text     string
		want     string
		wantExit bool
	}{
		{"", "Привет! Я бот.", false},
		{"/start", "Привет! Я бот.", false},
		{"помощь", "Я умею здороваться.", false},
		{"Что ты умеешь?", "Я умею здороваться.", false},
		{"выход", "Всего доброго!", true},
	}
	for _, tt := range tests {
		resp := respond(t, g, dialog.NewContext("u1", tt.text, nil, dialog.SourceText))
		if resp == nil {
			t.Errorf("Respond(%q): got nil, want %q", tt.text, tt.want)
			continue
		}
		if resp.Text != tt.want || resp.HasExitCommand() != tt.wantExit {
			t.Errorf("Respond(%q): got (%q, exit=%v), want (%q, exit=%v)",
				tt.text, resp.Text, resp.HasExitCommand(), tt.want, tt.wantExit)
		}
	}

	if resp := respond(t, g, dialog.NewContext("u1", "какая погода", nil, dialog.SourceText)); resp != nil {
		t.Errorf("unrelated message answered with %q", resp.Text)
	}

	noExit := &manager.GreetAndHelp{GreetingMessage: "hi", HelpMessage: "help"}
	if resp := respond(t, noExit, dialog.NewContext("u1", "выход", nil, dialog.SourceText)); resp != nil {
		t.Errorf("exit handled without exit message: %q", resp.Text)
	}
}
