package cascade_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/cascade"
	"github.com/MrWong99/dialogic/internal/nlu"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

func newTurn(text string, intents map[string]float64, userObject map[string]any) *cascade.Turn {
	ctx := dialog.NewContext("u1", text, userObject, dialog.SourceText)
	return cascade.NewTurn(ctx, nlu.Result{Text: text, Intents: intents})
}

func reply(text string) cascade.Handler {
	return func(t *cascade.Turn) { t.ResponseText = text }
}

func mustAdd(t *testing.T, c *cascade.Cascade, name string, h cascade.Handler, opts ...cascade.HandlerOption) {
	t.Helper()
	if err := c.Add(name, h, opts...); err != nil {
		t.Fatalf("Add(%q): %v", name, err)
	}
}

func rankingCascade(t *testing.T) *cascade.Cascade {
	t.Helper()
	c := cascade.New()
	mustAdd(t, c, "t0", reply("0"), cascade.WithPriority(0))
	mustAdd(t, c, "t1", reply("1"), cascade.WithPriority(1), cascade.WithIntents("i1"))
	mustAdd(t, c, "t2", reply("2"), cascade.WithPriority(1), cascade.WithIntents("i2"))
	mustAdd(t, c, "t3", reply("3"), cascade.WithPriority(2), cascade.WithIntents("i3"))
	mustAdd(t, c, "t4", reply("stage 1"), cascade.WithPriority(3), cascade.WithStages("s1"))
	c.AddPostprocessor("ask_for_tea", func(t *cascade.Turn, _ map[string]any) {
		t.ResponseText += "\nDo you want some tea?"
	})
	return c
}

func TestDispatch_Ranking(t *testing.T) {
	t.Parallel()

	c := rankingCascade(t)
	tests := []struct {
		intents map[string]float64
		want    string
	}{
		{map[string]float64{}, "t0"},
		{map[string]float64{"i1": 1, "i2": 0.5}, "t1"},
		{map[string]float64{"i2": 0.5}, "t2"},
		{map[string]float64{"i1": 1, "i2": 0.5, "i3": 0.1}, "t3"},
	}
	for _, tt := range tests {
		got, ok := c.Dispatch(newTurn("kek", tt.intents, nil))
		if !ok || got != tt.want {
			t.Errorf("Dispatch(%v): got (%q, %v), want %q", tt.intents, got, ok, tt.want)
		}
	}
}

func TestDispatch_StageGating(t *testing.T) {
	t.Parallel()

	c := rankingCascade(t)
	turn := newTurn("kek", map[string]float64{"i3": 1}, map[string]any{"stage": "s1"})
	if turn.Stage() != "s1" {
		t.Fatalf("Stage: got %q, want s1", turn.Stage())
	}
	if got, _ := c.Dispatch(turn); got != "t4" {
		t.Errorf("Dispatch in s1: got %q, want t4", got)
	}

	turn = newTurn("kek", map[string]float64{"i3": 1}, map[string]any{"stage": "s2"})
	if got, _ := c.Dispatch(turn); got == "t4" {
		t.Error("Dispatch in s2: stage handler selected")
	}
}

func TestDispatch_CompleteTurnIsNoop(t *testing.T) {
	t.Parallel()

	c := rankingCascade(t)
	turn := newTurn("kek", nil, nil)
	turn.ResponseText = "already"
	if got, ok := c.Dispatch(turn); ok || got != "" {
		t.Errorf("Dispatch: got (%q, %v), want none", got, ok)
	}
	if turn.ResponseText != "already" {
		t.Errorf("ResponseText: got %q", turn.ResponseText)
	}
}

func TestDispatch_NoHandlerCompletes(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	calls := 0
	mustAdd(t, c, "silent", func(*cascade.Turn) { calls++ })
	if got, ok := c.Dispatch(newTurn("kek", nil, nil)); ok || got != "" {
		t.Errorf("Dispatch: got (%q, %v), want none", got, ok)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestDispatch_Regexp(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	mustAdd(t, c, "weak", reply("weak"), cascade.WithIntents("weather"))
	mustAdd(t, c, "regexp", reply("regexp"), cascade.WithIntents("forecast"), cascade.WithRegexp(`погода`))
	mustAdd(t, c, "fallback", reply("fallback"))

	// The expression hit scores 1 and wins the intent tie.
	turn := newTurn("погода завтра", map[string]float64{"weather": 0.7}, nil)
	if got, _ := c.Dispatch(turn); got != "regexp" {
		t.Errorf("Dispatch(погода завтра): got %q, want regexp", got)
	}
	// Expressions match at the start of the text only.
	turn = newTurn("какая погода", map[string]float64{"weather": 0.7}, nil)
	if got, _ := c.Dispatch(turn); got != "weak" {
		t.Errorf("Dispatch(какая погода): got %q, want weak", got)
	}
	turn = newTurn("привет", nil, nil)
	if got, _ := c.Dispatch(turn); got != "fallback" {
		t.Errorf("Dispatch(привет): got %q, want fallback", got)
	}
}

func TestDispatch_TiesKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	mustAdd(t, c, "first", reply("1"), cascade.WithIntents("a"))
	mustAdd(t, c, "second", reply("2"), cascade.WithIntents("b"))
	for range 20 {
		got, _ := c.Dispatch(newTurn("x", map[string]float64{"a": 0.8, "b": 0.8}, nil))
		if got != "first" {
			t.Fatalf("Dispatch: got %q, want first", got)
		}
	}
}

func TestDispatch_CheckerAndDefaults(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	mustAdd(t, c, "never", reply("never"), cascade.WithChecker(func(*cascade.Turn) bool { return false }))
	mustAdd(t, c, "long", reply("long"), cascade.WithChecker(func(t *cascade.Turn) bool { return len(t.Text) > 10 }))
	mustAdd(t, c, "fallback", reply("fallback"))

	if got, _ := c.Dispatch(newTurn("a very long message", nil, nil)); got != "long" {
		t.Errorf("Dispatch(long): got %q, want long", got)
	}
	if got, _ := c.Dispatch(newTurn("short", nil, nil)); got != "fallback" {
		t.Errorf("Dispatch(short): got %q, want fallback", got)
	}
}

func TestAdd_Errors(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	mustAdd(t, c, "a", reply("a"))
	if err := c.Add("a", reply("again")); err == nil {
		t.Error("Add(duplicate): got nil error")
	}
	if err := c.Add("bad", reply("bad"), cascade.WithRegexp(`(`)); err == nil {
		t.Error("Add(invalid regexp): got nil error")
	}
	if err := c.Add("nil", nil); err == nil {
		t.Error("Add(nil handler): got nil error")
	}
	if diff := cmp.Diff([]string{"a"}, c.Handlers()); diff != "" {
		t.Errorf("Handlers mismatch (-want +got):\n%s", diff)
	}
}

func TestPostprocess(t *testing.T) {
	t.Parallel()

	c := rankingCascade(t)
	turn := newTurn("kek", nil, nil)
	turn.ResponseText = "The weather is cool."

	// Without an agenda nothing happens.
	turn.ReleaseControl()
	c.Postprocess(turn)
	if !strings.HasSuffix(turn.ResponseText, "cool.") {
		t.Fatalf("without agenda: got %q", turn.ResponseText)
	}

	// Without control nothing happens.
	turn.TakeControl()
	turn.AddAgenda("ask_for_tea", nil)
	c.Postprocess(turn)
	if !strings.HasSuffix(turn.ResponseText, "cool.") {
		t.Fatalf("without control: got %q", turn.ResponseText)
	}

	turn.ReleaseControl()
	c.Postprocess(turn)
	if !strings.HasSuffix(turn.ResponseText, "tea?") {
		t.Fatalf("with control: got %q", turn.ResponseText)
	}
	if len(turn.Agenda()) != 0 {
		t.Errorf("Agenda after postprocess: got %v, want empty", turn.Agenda())
	}
}

func TestPostprocess_PendingStageBlocks(t *testing.T) {
	t.Parallel()

	c := rankingCascade(t)
	turn := newTurn("kek", nil, nil)
	turn.ResponseText = "ok"
	turn.AddAgenda("ask_for_tea", nil)
	turn.ReleaseControl()
	turn.SetStage("ordering")
	if turn.CanTakeControl() {
		t.Fatal("CanTakeControl with a next stage: got true")
	}
	c.Postprocess(turn)
	if turn.ResponseText != "ok" {
		t.Errorf("ResponseText: got %q, want ok", turn.ResponseText)
	}
}

func TestPostprocess_Form(t *testing.T) {
	t.Parallel()

	c := cascade.New()
	var got map[string]any
	c.AddPostprocessor("remind", func(_ *cascade.Turn, form map[string]any) { got = form })

	turn := newTurn("kek", nil, nil)
	turn.ResponseText = "ok"
	turn.ReleaseControl()
	turn.AddAgenda("unknown", nil)
	turn.AddAgenda("remind", map[string]any{"what": "tea"})

	c.Postprocess(turn)
	if diff := cmp.Diff(map[string]any{"what": "tea"}, got); diff != "" {
		t.Errorf("form mismatch (-want +got):\n%s", diff)
	}
	// An entry without a postprocessor is consumed silently.
	c.Postprocess(turn)
	if len(turn.Agenda()) != 0 {
		t.Errorf("Agenda: got %v, want empty", turn.Agenda())
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	if p, ok := cascade.ParsePriority("strong_intent"); !ok || p != cascade.StrongIntent {
		t.Errorf("ParsePriority(strong_intent): got (%v, %v)", p, ok)
	}
	if _, ok := cascade.ParsePriority("urgent"); ok {
		t.Error("ParsePriority(urgent): got ok")
	}
	ladder := []cascade.Priority{
		cascade.Critical, cascade.Stage, cascade.StrongIntent, cascade.WeakStage,
		cascade.Checker, cascade.IntentPlus, cascade.Intent, cascade.IntentMinus,
		cascade.FAQ, cascade.FindAnything, cascade.BeforeFallback, cascade.Fallback,
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i] >= ladder[i-1] {
			t.Errorf("priority %d (%v) not below %v", i, ladder[i], ladder[i-1])
		}
	}
}
