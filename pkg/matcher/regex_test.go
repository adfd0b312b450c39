package matcher_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

func TestRegex(t *testing.T) {
	t.Parallel()

	m := matcher.NewRegex()
	mustFit(t, m,
		[]string{"привет", "добр(ый|ое) .+", "(который час|сколько времени)", "да|ага"},
		[]string{"hello", "hello", "get_time", "agree"},
	)

	tests := []struct {
		text  string
		label string
	}{
		{"привет", "hello"},
		{"доброе утро", "hello"},
		{"сколько времени", "get_time"},
		{"приветик", ""},
		{"ну привет", ""},
		{"Привет", ""}, // raw text is not normalized
		{"да", "agree"},
		{"ага", "agree"},
		{"да ну его", ""},
		{"ну ага", ""},
	}
	for _, tt := range tests {
		checkMatch(t, m, tt.text, tt.label, 1)
	}
	if n := len(m.Scores("привет")); n != 3 {
		t.Errorf("merged patterns: got %d scores, want one per label", n)
	}
}

func TestRegex_Options(t *testing.T) {
	t.Parallel()

	noAnchors := matcher.NewRegex(matcher.WithAnchors(false), matcher.WithMerge(false))
	mustFit(t, noAnchors, []string{"привет", "здравствуй"}, []string{"hello", "hello"})
	checkMatch(t, noAnchors, "приветик", "hello", 1)
	checkMatch(t, noAnchors, "ну привет", "", 0)

	separate := matcher.NewRegex(matcher.WithMerge(false))
	mustFit(t, separate, []string{"да|ага"}, []string{"agree"})
	checkMatch(t, separate, "ага", "agree", 1)
	checkMatch(t, separate, "да ну его", "", 0)
	checkMatch(t, separate, "ну ага", "", 0)
	if n := len(noAnchors.Scores("привет")); n != 2 {
		t.Errorf("unmerged patterns: got %d scores, want 2", n)
	}

	normalized := matcher.NewRegex(matcher.WithPreprocess(textnorm.Normalize))
	mustFit(t, normalized, []string{"привет"}, []string{"hello"})
	checkMatch(t, normalized, "Привет!!", "hello", 1)
}

func TestRegex_InvalidKeepsPreviousFit(t *testing.T) {
	t.Parallel()

	m := matcher.NewRegex()
	mustFit(t, m, []string{"да"}, []string{"yes"})
	if err := m.Fit([]string{"(нет"}, []string{"no"}); err == nil {
		t.Fatal("Fit with invalid pattern: expected error")
	}
	checkMatch(t, m, "да", "yes", 1)
}

func TestRegexp2Engine(t *testing.T) {
	t.Parallel()

	m := matcher.NewRegex(matcher.WithEngine(matcher.Regexp2Engine{}))
	mustFit(t, m, []string{"(?!не ).*хочу.*"}, []string{"want"})
	checkMatch(t, m, "я хочу пиццу", "want", 1)
	checkMatch(t, m, "не хочу", "", 0)

	p, err := matcher.Regexp2Engine{}.Compile(`(?<city>\w+) в (?<time>\d+)`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, ok := p.FindNamed("москва в 10")
	if !ok {
		t.Fatal("FindNamed: no match")
	}
	if diff := cmp.Diff(map[string]string{"city": "москва", "time": "10"}, got); diff != "" {
		t.Errorf("FindNamed mismatch (-want +got):\n%s", diff)
	}
}

func TestStdEngine_FindNamed(t *testing.T) {
	t.Parallel()

	p, err := matcher.StdEngine{}.Compile(`(?P<n>\d+)(?: (?P<unit>шт))?`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, ok := p.FindNamed("купи 3")
	if !ok {
		t.Fatal("FindNamed: no match")
	}
	if diff := cmp.Diff(map[string]string{"n": "3"}, got); diff != "" {
		t.Errorf("FindNamed mismatch (-want +got):\n%s", diff)
	}
	if _, ok := p.FindNamed("нет чисел"); ok {
		t.Error("FindNamed: unexpected match")
	}
}

func TestEngineByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "re", "regexp2"} {
		if _, err := matcher.EngineByName(name); err != nil {
			t.Errorf("EngineByName(%q): %v", name, err)
		}
	}
	if _, err := matcher.EngineByName("pcre"); err == nil {
		t.Error("EngineByName(pcre): expected error")
	}
}
