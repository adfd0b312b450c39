package matcher_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dialogic/pkg/matcher"
)

func TestExpandRegex(t *testing.T) {
	t.Parallel()

	exprs := matcher.Expressions{"GREET": "привет|здравствуй"}
	got, err := matcher.ExpandRegex("{{GREET}},? (мир|бот)", exprs)
	if err != nil {
		t.Fatalf("ExpandRegex: %v", err)
	}
	if want := "(привет|здравствуй),? (мир|бот)"; got != want {
		t.Errorf("ExpandRegex: got %q, want %q", got, want)
	}
	if _, err := matcher.ExpandRegex("{{ NOPE }}", exprs); err == nil {
		t.Error("unknown expression: expected error")
	}
}

func TestExpressions_Resolve(t *testing.T) {
	t.Parallel()

	got, err := matcher.Expressions{
		"NUM":   `\d+`,
		"PRICE": "{{NUM}} (руб|р)",
		"ORDER": "купи за {{PRICE}}",
	}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := `купи за ((\d+) (руб|р))`; got["ORDER"] != want {
		t.Errorf("ORDER: got %q, want %q", got["ORDER"], want)
	}

	if _, err := (matcher.Expressions{"A": "{{B}}", "B": "x{{A}}"}).Resolve(); err == nil {
		t.Error("cyclic expressions: expected error")
	}
	if _, err := (matcher.Expressions{"A": "{{MISSING}}"}).Resolve(); err == nil {
		t.Error("dangling reference: expected error")
	}
}

func TestLoadExpressions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "expressions.yaml")
	if err := os.WriteFile(path, []byte("YES: да|ага\nANSWER: '{{YES}} конечно'\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := matcher.LoadExpressions(path)
	if err != nil {
		t.Fatalf("LoadExpressions: %v", err)
	}
	if got["ANSWER"] != "(да|ага) конечно" {
		t.Errorf("ANSWER: got %q", got["ANSWER"])
	}
	if _, err := matcher.LoadExpressions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestIntent_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	var intents map[string]matcher.Intent
	src := `
hello:
  examples: [привет, добрый день]
  regexp: "здравствуй.*"
bye:
  regexp:
    - пока
    - до свидания
  threshold: 0.9
`
	if err := yaml.Unmarshal([]byte(src), &intents); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(matcher.Patterns{"здравствуй.*"}, intents["hello"].Regexp); diff != "" {
		t.Errorf("hello regexp (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(matcher.Patterns{"пока", "до свидания"}, intents["bye"].Regexp); diff != "" {
		t.Errorf("bye regexp (-want +got):\n%s", diff)
	}
	if th := intents["bye"].Threshold; th == nil || *th != 0.9 {
		t.Errorf("bye threshold: got %v", th)
	}

	var bad map[string]matcher.Intent
	if err := yaml.Unmarshal([]byte("x:\n  regexp: {a: b}\n"), &bad); err == nil {
		t.Error("mapping regexp: expected error")
	}
}

func TestMakeWithRegex(t *testing.T) {
	t.Parallel()

	high := 0.99
	intents := map[string]matcher.Intent{
		"hello": {Examples: []string{"привет", "добрый день"}, Regexp: matcher.Patterns{"здравствуй.*"}},
		"time":  {Examples: []string{"сколько времени"}, Threshold: &high},
	}
	m, err := matcher.MakeWithRegex(matcher.NewJaccard(matcher.WithThreshold(0.3)), intents)
	if err != nil {
		t.Fatalf("MakeWithRegex: %v", err)
	}

	checkMatch(t, m, "здравствуйте", "hello", 1)
	checkMatch(t, m, "добрый вечер", "hello", 1.0/3)
	checkMatch(t, m, "сколько времени", "time", 1)
	// One word of three in common is below the time intent's own threshold.
	checkMatch(t, m, "сколько стоит", "", 0)
}

func TestExpandIntents(t *testing.T) {
	t.Parallel()

	intents := map[string]matcher.Intent{
		"yes": {Regexp: matcher.Patterns{"{{YES}}", "ну {{YES}}"}},
	}
	if err := matcher.ExpandIntents(intents, matcher.Expressions{"YES": "да|ага"}); err != nil {
		t.Fatalf("ExpandIntents: %v", err)
	}
	if diff := cmp.Diff(matcher.Patterns{"(да|ага)", "ну (да|ага)"}, intents["yes"].Regexp); diff != "" {
		t.Errorf("expanded (-want +got):\n%s", diff)
	}
	if err := matcher.ExpandIntents(intents, matcher.Expressions{"NO": "нет"}); err != nil {
		t.Errorf("no placeholders left: %v", err)
	}
}
