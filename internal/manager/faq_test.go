package manager_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/manager"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

const faqYAML = `
- q: [как тебя зовут, кто ты]
  a: Меня зовут Бот.
  s: [Что ты умеешь]
- q: что ты умеешь делать
  a: [Ничего., Совсем ничего.]
`

func TestFAQ(t *testing.T) {
	t.Parallel()

	entries, err := manager.ParseFAQ([]byte(faqYAML))
	if err != nil {
		t.Fatal(err)
	}
	faq, err := manager.NewFAQ(entries, manager.WithFAQSeed(1))
	if err != nil {
		t.Fatal(err)
	}

	resp := respond(t, faq, dialog.NewContext("u1", "Кто ты?", nil, dialog.SourceText))
	if resp == nil {
		t.Fatal("no answer to a known question")
	}
	if resp.Text != "Меня зовут Бот." {
		t.Errorf("text = %q", resp.Text)
	}
	if diff := cmp.Diff([]string{"Что ты умеешь"}, resp.Suggests); diff != "" {
		t.Errorf("suggests mismatch (-want +got):\n%s", diff)
	}

	resp = respond(t, faq, dialog.NewContext("u1", "что ты умеешь делать", nil, dialog.SourceText))
	if resp == nil || !slices.Contains([]string{"Ничего.", "Совсем ничего."}, resp.Text) {
		t.Errorf("got %+v, want one of the answer variants", resp)
	}

	if resp := respond(t, faq, dialog.NewContext("u1", "погода в москве", nil, dialog.SourceText)); resp != nil {
		t.Errorf("unknown question answered with %q", resp.Text)
	}
}

func TestFAQ_CustomMatcher(t *testing.T) {
	t.Parallel()

	entries := []manager.FAQEntry{{Questions: manager.Texts{"привет"}, Answers: manager.Texts{"Здравствуйте!"}}}
	faq, err := manager.NewFAQ(entries, manager.WithFAQMatcher(matcher.NewExact()))
	if err != nil {
		t.Fatal(err)
	}
	if resp := respond(t, faq, dialog.NewContext("u1", "Привет!", nil, dialog.SourceText)); resp == nil || resp.Text != "Здравствуйте!" {
		t.Errorf("got %+v, want Здравствуйте!", resp)
	}
	if resp := respond(t, faq, dialog.NewContext("u1", "привет бот", nil, dialog.SourceText)); resp != nil {
		t.Errorf("exact matcher answered %q", resp.Text)
	}
}

func TestFAQ_Invalid(t *testing.T) {
	t.Parallel()

	_, err := manager.NewFAQ([]manager.FAQEntry{{Questions: manager.Texts{"q"}}, {Answers: manager.Texts{"a"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"entry 0 has no answers", "entry 1 has no questions"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if _, err := manager.ParseFAQ([]byte("- {q: a, a: b, x: c}")); err == nil {
		t.Error("ParseFAQ accepted an unknown key")
	}
}
