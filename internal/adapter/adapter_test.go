package adapter_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

func TestUserID(t *testing.T) {
	t.Parallel()
	if got := adapter.UserID(dialog.SourceTelegram, "123"); got != "telegram__123" {
		t.Errorf("UserID: got %q, want telegram__123", got)
	}
}

func TestEncodeURL(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"https://example.com/a?b=c&d=e", "https://example.com/a?b=c&d=e"},
		{"https://ru.wikipedia.org/wiki/Кот", "https://ru.wikipedia.org/wiki/%D0%9A%D0%BE%D1%82"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := adapter.EncodeURL(tt.in); got != tt.want {
			t.Errorf("EncodeURL(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestButtons(t *testing.T) {
	t.Parallel()
	resp := dialog.NewResponse("hi", "да", "нет")
	resp.AddLink("Сайт", "https://example.com/путь", false)

	want := []adapter.Button{
		{Title: "Сайт", URL: "https://example.com/%D0%BF%D1%83%D1%82%D1%8C"},
		{Title: "да", Hide: true},
		{Title: "нет", Hide: true},
	}
	if diff := cmp.Diff(want, adapter.Buttons(resp)); diff != "" {
		t.Errorf("Buttons mismatch (-want +got):\n%s", diff)
	}
}

func TestRows(t *testing.T) {
	t.Parallel()
	items := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		width int
		want  [][]string
	}{
		{width: 2, want: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		{width: 5, want: [][]string{items}},
		{width: 0, want: [][]string{items}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, adapter.Rows(items, tt.width)); diff != "" {
			t.Errorf("Rows(width=%d) mismatch (-want +got):\n%s", tt.width, diff)
		}
	}
	if got := adapter.Rows([]string(nil), 3); got != nil {
		t.Errorf("Rows(nil): got %v, want nil", got)
	}
}
