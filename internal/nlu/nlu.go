// Package nlu resolves the intents of an inbound message.
//
// A [Resolver] combines three sources of intent evidence: a fitted
// [matcher.Matcher] (by default tf-idf over intent examples, max-merged with
// the intents' regular expressions), slot extraction through named capture
// groups of those expressions, and the platform-native NLU payload carried by
// [dialog.Context.NLU]. Optional heuristics add the built-in yes, no, help
// and exit intents.
//
// A Resolver is read-only after [New] and safe for concurrent use.
package nlu

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

// HeuristicFloor is the score heuristic intents are raised to.
const HeuristicFloor = 0.9

// Built-in heuristic intent names.
const (
	IntentYes  = "yes"
	IntentNo   = "no"
	IntentHelp = "help"
	IntentExit = "exit"
)

// Result is the outcome of resolving one message.
type Result struct {
	// Text is the normalized utterance.
	Text string

	// Intents maps intent names to their confidence. Absent names did not
	// fire.
	Intents map[string]float64

	// Forms maps intent names to the slots extracted for them.
	Forms map[string]map[string]string
}

// Score returns the confidence of intent and whether it fired.
func (r Result) Score(intent string) (float64, bool) {
	v, ok := r.Intents[intent]
	return v, ok
}

// Option configures a [Resolver].
type Option func(*config)

type config struct {
	base        matcher.Matcher
	fitted      matcher.Matcher
	normalizer  *textnorm.Normalizer
	engine      matcher.Engine
	expressions matcher.Expressions
	heuristics  bool
	metrics     *observe.Metrics
	logger      *slog.Logger
}

// WithBaseMatcher sets the unfitted matcher that is fitted on the intent
// examples. Default: tf-idf with the resolver's normalizer.
func WithBaseMatcher(m matcher.Matcher) Option {
	return func(c *config) { c.base = m }
}

// WithMatcher sets an already fitted matcher and skips fitting entirely.
// Slot extraction still uses the intents' expressions.
func WithMatcher(m matcher.Matcher) Option {
	return func(c *config) { c.fitted = m }
}

// WithNormalizer sets the normalizer of the default base matcher, typically
// one with a lemmatizer.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(c *config) { c.normalizer = n }
}

// WithEngine sets the regular expression engine used for intent expressions.
// Default: [matcher.StdEngine].
func WithEngine(e matcher.Engine) Option {
	return func(c *config) { c.engine = e }
}

// WithExpressions expands {{NAME}} placeholders in intent expressions.
func WithExpressions(e matcher.Expressions) Option {
	return func(c *config) { c.expressions = e }
}

// WithHeuristics enables the built-in yes, no, help and exit intents.
func WithHeuristics(enabled bool) Option {
	return func(c *config) { c.heuristics = enabled }
}

// WithMetrics records resolution latency on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger sets the logger used for malformed platform payloads.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// slotPattern is one compiled expression of an intent.
type slotPattern struct {
	intent  string
	pattern matcher.Pattern
}

// Resolver turns a [dialog.Context] into intent scores and slots.
type Resolver struct {
	matcher    matcher.Matcher
	patterns   []slotPattern
	heuristics bool
	metrics    *observe.Metrics
	logger     *slog.Logger
}

// New builds a resolver for intents. With no intents and no fitted matcher
// the resolver only reports platform-native and heuristic intents.
func New(intents map[string]matcher.Intent, opts ...Option) (*Resolver, error) {
	cfg := config{engine: matcher.StdEngine{}}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	intents = cloneIntents(intents)
	if cfg.expressions != nil {
		if err := matcher.ExpandIntents(intents, cfg.expressions); err != nil {
			return nil, fmt.Errorf("nlu: %w", err)
		}
	}

	r := &Resolver{
		matcher:    cfg.fitted,
		heuristics: cfg.heuristics,
		metrics:    cfg.metrics,
		logger:     cfg.logger,
	}

	names := slices.Sorted(maps.Keys(intents))
	for _, name := range names {
		for _, expr := range intents[name].Regexp {
			p, err := cfg.engine.Compile("^(?:" + expr + ")$")
			if err != nil {
				return nil, fmt.Errorf("nlu: intent %q: %w", name, err)
			}
			r.patterns = append(r.patterns, slotPattern{intent: name, pattern: p})
		}
	}

	if r.matcher == nil && len(intents) > 0 {
		base := cfg.base
		if base == nil {
			var mopts []matcher.Option
			if cfg.normalizer != nil {
				mopts = append(mopts, matcher.WithNormalizer(cfg.normalizer))
			}
			base = matcher.NewTFIDF(mopts...)
		}
		m, err := matcher.MakeWithRegex(base, intents, matcher.WithEngine(cfg.engine))
		if err != nil {
			return nil, fmt.Errorf("nlu: %w", err)
		}
		r.matcher = m
	}
	return r, nil
}

func cloneIntents(in map[string]matcher.Intent) map[string]matcher.Intent {
	out := make(map[string]matcher.Intent, len(in))
	for name, it := range in {
		it.Regexp = slices.Clone(it.Regexp)
		out[name] = it
	}
	return out
}

// Matcher returns the fitted intent matcher, or nil.
func (r *Resolver) Matcher() matcher.Matcher { return r.matcher }

// Resolve normalizes the text of dc and scores every intent. A nil context
// resolves as an empty message. Resolve never fails: malformed platform
// payloads are logged and ignored.
func (r *Resolver) Resolve(dc *dialog.Context) Result {
	start := time.Now()
	res := Result{
		Intents: make(map[string]float64),
		Forms:   make(map[string]map[string]string),
	}
	if dc == nil {
		return res
	}

	res.Text = textnorm.Normalize(dc.Text)
	if r.matcher != nil {
		maps.Copy(res.Intents, matcher.AggregateScores(r.matcher, res.Text, true))
	}
	r.matchForms(&res)
	r.mergeNative(dc, &res)
	if r.heuristics {
		applyHeuristics(dc.Text, res.Intents)
	}

	r.metrics.NLUDuration.Record(context.Background(), time.Since(start).Seconds())
	return res
}

// matchForms records the named groups of the first matching expression of
// every intent and forces its score to 1.
func (r *Resolver) matchForms(res *Result) {
	for _, sp := range r.patterns {
		if _, done := res.Forms[sp.intent]; done {
			continue
		}
		groups, ok := sp.pattern.FindNamed(res.Text)
		if !ok {
			continue
		}
		res.Forms[sp.intent] = groups
		res.Intents[sp.intent] = 1
	}
}

func (r *Resolver) mergeNative(dc *dialog.Context, res *Result) {
	if dc.NLU == nil {
		return
	}
	forms, err := ParseNative(dc.NLU)
	if err != nil {
		r.logger.Warn("ignoring malformed native nlu", "user_id", dc.UserID, "source", dc.Source, "err", err)
		return
	}
	for name, slots := range forms {
		res.Forms[name] = slots
		res.Intents[name] = 1
	}
}

func applyHeuristics(text string, intents map[string]float64) {
	checks := []struct {
		name string
		like func(string) bool
	}{
		{IntentYes, textnorm.LikeYes},
		{IntentNo, textnorm.LikeNo},
		{IntentHelp, textnorm.LikeHelp},
		{IntentExit, textnorm.LikeExit},
	}
	for _, c := range checks {
		if !c.like(text) {
			continue
		}
		if v, ok := intents[c.name]; !ok || v < HeuristicFloor {
			intents[c.name] = HeuristicFloor
		}
	}
}
