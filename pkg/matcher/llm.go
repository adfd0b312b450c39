package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/dialogic/pkg/provider/llm"
)

const (
	defaultLLMTimeout     = 5 * time.Second
	defaultLLMMaxExamples = 5
)

const llmSystemPrompt = `You are an intent classifier for a chatbot.
Given a user utterance, estimate for every intent label the probability that the utterance expresses it.
Reply with a single JSON object that maps each label to a number between 0 and 1, and nothing else.

Labels with example utterances:
%s`

// LLMClassifier is a [Classifier] that asks a language model to score an
// utterance against intent labels, using a few fitted examples per label as
// guidance.
type LLMClassifier struct {
	provider    llm.Provider
	timeout     time.Duration
	maxExamples int

	mu       sync.RWMutex
	classes  []string
	examples map[string][]string
	prompt   string
}

var _ Classifier = (*LLMClassifier)(nil)

// LLMOption configures an [LLMClassifier].
type LLMOption func(*LLMClassifier)

// WithLLMTimeout bounds a single prediction. Default: 5s.
func WithLLMTimeout(d time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		c.timeout = d
	}
}

// WithLLMMaxExamples caps the examples shown per label. Default: 5.
func WithLLMMaxExamples(n int) LLMOption {
	return func(c *LLMClassifier) {
		c.maxExamples = n
	}
}

// NewLLMClassifier returns a classifier backed by p.
func NewLLMClassifier(p llm.Provider, opts ...LLMOption) *LLMClassifier {
	c := &LLMClassifier{
		provider:    p,
		timeout:     defaultLLMTimeout,
		maxExamples: defaultLLMMaxExamples,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fit implements [Classifier]. Classes are the distinct labels in sorted order.
func (c *LLMClassifier) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	examples := make(map[string][]string)
	for i, label := range labels {
		if _, ok := examples[label]; !ok {
			examples[label] = nil
		}
		if len(examples[label]) < c.maxExamples {
			examples[label] = append(examples[label], texts[i])
		}
	}
	classes := make([]string, 0, len(examples))
	for label := range examples {
		classes = append(classes, label)
	}
	slices.Sort(classes)

	var b strings.Builder
	for _, label := range classes {
		fmt.Fprintf(&b, "- %s", label)
		if ex := examples[label]; len(ex) > 0 {
			quoted, _ := json.Marshal(ex)
			fmt.Fprintf(&b, ": %s", quoted)
		}
		b.WriteByte('\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes = classes
	c.examples = examples
	c.prompt = fmt.Sprintf(llmSystemPrompt, b.String())
	return nil
}

// Classes implements [Classifier].
func (c *LLMClassifier) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classes
}

// PredictProba implements [Classifier].
func (c *LLMClassifier) PredictProba(text string) ([]float64, error) {
	c.mu.RLock()
	classes, prompt := c.classes, c.prompt
	c.mu.RUnlock()
	if len(classes) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages:     []llm.Message{{Role: "user", Content: text}},
		MaxTokens:    256,
	})
	if err != nil {
		return nil, fmt.Errorf("matcher: llm classify: %w", err)
	}
	if resp == nil {
		return nil, errors.New("matcher: llm classify: empty response")
	}
	probs, err := parseProbabilities(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("matcher: llm classify: %w", err)
	}

	out := make([]float64, len(classes))
	for i, label := range classes {
		p := probs[label]
		out[i] = min(max(p, 0), 1)
	}
	return out, nil
}

// parseProbabilities extracts the first JSON object from a model reply,
// tolerating surrounding prose and code fences.
func parseProbabilities(reply string) (map[string]float64, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply %q", reply)
	}
	var probs map[string]float64
	if err := json.Unmarshal([]byte(reply[start:end+1]), &probs); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return probs, nil
}
