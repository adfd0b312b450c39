package nlu_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/nlu"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

func testIntents() map[string]matcher.Intent {
	return map[string]matcher.Intent{
		"weather": {
			Examples: []string{"какая погода", "погода"},
			Regexp:   matcher.Patterns{`погода в (?P<city>[а-я]+)`},
		},
		"time": {Examples: []string{"который час", "сколько времени"}},
		"order": {
			Regexp: matcher.Patterns{
				`закажи (?P<count>\d+) (?P<item>[а-я]+)`,
				`закажи (?P<item>[а-я]+)`,
			},
		},
	}
}

func newResolver(t *testing.T, opts ...nlu.Option) *nlu.Resolver {
	t.Helper()
	opts = append([]nlu.Option{nlu.WithBaseMatcher(matcher.NewExact())}, opts...)
	r, err := nlu.New(testIntents(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := newResolver(t)
	tests := []struct {
		text string
		want nlu.Result
	}{
		{
			text: "Который час?",
			want: nlu.Result{
				Text:    "который час",
				Intents: map[string]float64{"time": 1},
				Forms:   map[string]map[string]string{},
			},
		},
		{
			text: "Погода в Москве!",
			want: nlu.Result{
				Text:    "погода в москве",
				Intents: map[string]float64{"weather": 1},
				Forms:   map[string]map[string]string{"weather": {"city": "москве"}},
			},
		},
		{
			text: "закажи 3 пиццы",
			want: nlu.Result{
				Text:    "закажи 3 пиццы",
				Intents: map[string]float64{"order": 1},
				Forms:   map[string]map[string]string{"order": {"count": "3", "item": "пиццы"}},
			},
		},
		{
			text: "закажи пиццу",
			want: nlu.Result{
				Text:    "закажи пиццу",
				Intents: map[string]float64{"order": 1},
				Forms:   map[string]map[string]string{"order": {"item": "пиццу"}},
			},
		},
		{
			text: "расскажи анекдот",
			want: nlu.Result{
				Text:    "расскажи анекдот",
				Intents: map[string]float64{},
				Forms:   map[string]map[string]string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			got := r.Resolve(dialog.NewContext("u1", tt.text, nil, dialog.SourceText))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestResolve_DefaultTFIDF(t *testing.T) {
	t.Parallel()

	r, err := nlu.New(testIntents())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Matcher() == nil {
		t.Fatal("Matcher: got nil, want the default ensemble")
	}
	got := r.Resolve(dialog.NewContext("u1", "какая сейчас погода", nil, dialog.SourceText))
	if got.Intents["weather"] < matcher.DefaultThreshold {
		t.Errorf("weather: got %v, want at least %v", got.Intents["weather"], matcher.DefaultThreshold)
	}
	if _, ok := got.Intents["time"]; ok {
		t.Errorf("time: got %v, want absent", got.Intents["time"])
	}
}

func TestResolve_NoIntents(t *testing.T) {
	t.Parallel()

	r, err := nlu.New(nil, nlu.WithHeuristics(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Matcher() != nil {
		t.Errorf("Matcher: got %T, want nil", r.Matcher())
	}
	got := r.Resolve(dialog.NewContext("u1", "Помощь", nil, dialog.SourceText))
	want := map[string]float64{nlu.IntentHelp: nlu.HeuristicFloor}
	if diff := cmp.Diff(want, got.Intents); diff != "" {
		t.Errorf("intents mismatch (-want +got):\n%s", diff)
	}

	if got := r.Resolve(nil); got.Text != "" || len(got.Intents) != 0 {
		t.Errorf("Resolve(nil): got %+v, want empty", got)
	}
}

func TestResolve_Native(t *testing.T) {
	t.Parallel()

	r := newResolver(t)
	dc := dialog.NewContext("u1", "закажи пиццу", nil, dialog.SourceAlice)
	dc.NLU = map[string]any{
		"intents": map[string]any{
			"order": map[string]any{
				"slots": map[string]any{
					"count": map[string]any{"type": "YANDEX.NUMBER", "value": 2.0},
					"item":  map[string]any{"type": "YANDEX.STRING", "value": "пицца"},
				},
			},
			"YANDEX.CONFIRM": map[string]any{"slots": map[string]any{}},
		},
	}

	got := r.Resolve(dc)
	wantIntents := map[string]float64{"order": 1, "YANDEX.CONFIRM": 1}
	if diff := cmp.Diff(wantIntents, got.Intents); diff != "" {
		t.Errorf("intents mismatch (-want +got):\n%s", diff)
	}
	// Native slots take precedence over the expression captures.
	wantForms := map[string]map[string]string{
		"order":          {"count": "2", "item": "пицца"},
		"YANDEX.CONFIRM": {},
	}
	if diff := cmp.Diff(wantForms, got.Forms); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_MalformedNative(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := newResolver(t, nlu.WithLogger(logger))

	dc := dialog.NewContext("u1", "который час", nil, dialog.SourceAlice)
	dc.NLU = map[string]any{"intents": "oops"}

	got := r.Resolve(dc)
	if diff := cmp.Diff(map[string]float64{"time": 1}, got.Intents); diff != "" {
		t.Errorf("intents mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "malformed native nlu") {
		t.Errorf("log: got %q, want a malformed payload warning", buf.String())
	}
}

func TestResolve_Heuristics(t *testing.T) {
	t.Parallel()

	intents := testIntents()
	intents[nlu.IntentYes] = matcher.Intent{Examples: []string{"да конечно"}}
	r, err := nlu.New(intents, nlu.WithBaseMatcher(matcher.NewExact()), nlu.WithHeuristics(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		text string
		want map[string]float64
	}{
		{"Да", map[string]float64{nlu.IntentYes: nlu.HeuristicFloor}},
		{"да конечно", map[string]float64{nlu.IntentYes: 1}},
		{"нет", map[string]float64{nlu.IntentNo: nlu.HeuristicFloor}},
		{"хватит", map[string]float64{nlu.IntentExit: nlu.HeuristicFloor}},
		{"что ты умеешь", map[string]float64{nlu.IntentHelp: nlu.HeuristicFloor}},
	}
	for _, tt := range tests {
		got := r.Resolve(dialog.NewContext("u1", tt.text, nil, dialog.SourceText))
		if diff := cmp.Diff(tt.want, got.Intents); diff != "" {
			t.Errorf("Resolve(%q) intents mismatch (-want +got):\n%s", tt.text, diff)
		}
	}
}

func TestNew_Expressions(t *testing.T) {
	t.Parallel()

	intents := map[string]matcher.Intent{
		"weather": {Regexp: matcher.Patterns{`погода (в )?{{CITY}}`}},
	}
	r, err := nlu.New(intents,
		nlu.WithBaseMatcher(matcher.NewExact()),
		nlu.WithExpressions(matcher.Expressions{"CITY": `(?P<city>москве|питере)`}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := r.Resolve(dialog.NewContext("u1", "погода в питере", nil, dialog.SourceText))
	if got.Forms["weather"]["city"] != "питере" {
		t.Errorf("city: got %q, want питере", got.Forms["weather"]["city"])
	}
	if intents["weather"].Regexp[0] != `погода (в )?{{CITY}}` {
		t.Errorf("caller intents modified: %q", intents["weather"].Regexp[0])
	}
}

func TestNew_InvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := nlu.New(map[string]matcher.Intent{"bad": {Regexp: matcher.Patterns{`(`}}})
	if err == nil {
		t.Fatal("New: got nil error, want compile failure")
	}
}

func TestParseNative(t *testing.T) {
	t.Parallel()

	got, err := nlu.ParseNative(map[string]any{
		"intents": map[string]any{
			"book": map[string]any{"slots": map[string]any{
				"when":   map[string]any{"value": map[string]any{"day": 1.0}},
				"guests": map[string]any{"value": 4.0},
				"vip":    map[string]any{"value": true},
			}},
		},
	})
	if err != nil {
		t.Fatalf("ParseNative: %v", err)
	}
	want := map[string]map[string]string{
		"book": {"when": `{"day":1}`, "guests": "4", "vip": "true"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseNative mismatch (-want +got):\n%s", diff)
	}

	if got, err := nlu.ParseNative(map[string]any{}); err != nil || len(got) != 0 {
		t.Errorf("ParseNative(empty): got (%v, %v), want no forms", got, err)
	}

	bad := []map[string]any{
		{"intents": []any{}},
		{"intents": map[string]any{"x": "y"}},
		{"intents": map[string]any{"x": map[string]any{"slots": 1.0}}},
		{"intents": map[string]any{"x": map[string]any{"slots": map[string]any{"s": "v"}}}},
	}
	for _, p := range bad {
		if _, err := nlu.ParseNative(p); err == nil {
			t.Errorf("ParseNative(%v): got nil error", p)
		}
	}
}
