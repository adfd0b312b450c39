package matcher_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/provider/llm"
	"github.com/MrWong99/dialogic/pkg/provider/llm/mock"
)

func TestLLMClassifier(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"hello\": 0.9, \"get_time\": 1.7}\n```",
		},
	}
	m, err := matcher.New("model", matcher.WithClassifier(matcher.NewLLMClassifier(p, matcher.WithLLMMaxExamples(1))))
	if err != nil {
		t.Fatalf("New(model): %v", err)
	}
	mustFit(t, m, sampleTexts, sampleLabels)

	got := matcher.AggregateScores(m, "который час", false)
	if got["get_time"] != 1 || got["hello"] != 0.9 {
		t.Errorf("AggregateScores: got %v, want get_time clamped to 1 and hello 0.9", got)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls: got %d, want 1", len(calls))
	}
	prompt := calls[0].Req.SystemPrompt
	for _, want := range []string{"- get_time", "- hello", "привет"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt lacks %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "добрый день") {
		t.Errorf("system prompt exceeds the example cap:\n%s", prompt)
	}
	if msgs := calls[0].Req.Messages; len(msgs) != 1 || msgs[0].Content != "который час" {
		t.Errorf("messages: got %+v", msgs)
	}
}

func TestLLMClassifier_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *mock.Provider
	}{
		{"provider error", &mock.Provider{CompleteErr: errors.New("unavailable")}},
		{"nil response", &mock.Provider{}},
		{"no json", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hello, probably"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := matcher.NewLLMClassifier(tt.p)
			if err := c.Fit(sampleTexts, sampleLabels); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if _, err := c.PredictProba("привет"); err == nil {
				t.Error("PredictProba: expected error")
			}

			m, err := matcher.NewModelBased(matcher.WithClassifier(c))
			if err != nil {
				t.Fatalf("NewModelBased: %v", err)
			}
			mustFit(t, m, sampleTexts, sampleLabels)
			checkMatch(t, m, "привет", "", 0)
		})
	}
}

func TestLLMClassifier_Unfitted(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	probs, err := matcher.NewLLMClassifier(p).PredictProba("привет")
	if err != nil || probs != nil {
		t.Errorf("PredictProba before Fit: got (%v, %v), want (nil, nil)", probs, err)
	}
	if len(p.Calls()) != 0 {
		t.Error("unfitted classifier called the provider")
	}
}
