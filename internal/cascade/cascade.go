// Package cascade implements turn-based dialog handling: a [Turn] carries one
// message and the response being built, and a [Cascade] picks the handler
// that answers it by priority, stage, intent score and custom checks.
//
// Handlers are registered once at startup, in order; the registration order
// breaks ties between equally ranked handlers. A Cascade is safe for
// concurrent Dispatch calls.
package cascade

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

// Handler builds a response into the turn. A handler that leaves the turn
// incomplete lets the next candidate try.
type Handler func(t *Turn)

// CheckerFunc reports whether a handler applies to the turn.
type CheckerFunc func(t *Turn) bool

// Postprocessor appends to a completed turn. form is the one stashed with
// the agenda entry, or nil.
type Postprocessor func(t *Turn, form map[string]any)

type item struct {
	name     string
	handler  Handler
	priority Priority
	intents  []string
	stages   []string
	checker  CheckerFunc
	regexp   matcher.Pattern
}

// HandlerOption configures a registered handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	priority *Priority
	intents  []string
	stages   []string
	checker  CheckerFunc
	regexp   string
}

// WithPriority overrides the default priority.
func WithPriority(p Priority) HandlerOption {
	return func(c *handlerConfig) { c.priority = &p }
}

// WithIntents makes the handler eligible only when one of intents fired. Its
// score is the best score among them.
func WithIntents(intents ...string) HandlerOption {
	return func(c *handlerConfig) { c.intents = append(c.intents, intents...) }
}

// WithStages makes the handler eligible only in one of stages.
func WithStages(stages ...string) HandlerOption {
	return func(c *handlerConfig) { c.stages = append(c.stages, stages...) }
}

// WithChecker skips the handler whenever fn reports false.
func WithChecker(fn CheckerFunc) HandlerOption {
	return func(c *handlerConfig) { c.checker = fn }
}

// WithRegexp makes the handler eligible with score 1 when expr matches the
// beginning of the normalized text.
func WithRegexp(expr string) HandlerOption {
	return func(c *handlerConfig) { c.regexp = expr }
}

// Option configures a [Cascade].
type Option func(*Cascade)

// WithEngine sets the engine handler expressions are compiled with.
// Default: [matcher.StdEngine].
func WithEngine(e matcher.Engine) Option {
	return func(c *Cascade) { c.engine = e }
}

// WithMetrics records dispatches on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cascade) { c.metrics = m }
}

// Cascade is an ordered registry of handlers and named postprocessors.
type Cascade struct {
	engine  matcher.Engine
	metrics *observe.Metrics

	mu             sync.RWMutex
	items          []item
	postprocessors map[string]Postprocessor
}

// New returns an empty cascade.
func New(opts ...Option) *Cascade {
	c := &Cascade{
		engine:         matcher.StdEngine{},
		postprocessors: make(map[string]Postprocessor),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Add registers h under name. Without [WithPriority], handlers with stages
// get [Stage], handlers with intents or an expression get [Intent], handlers
// with only a checker get [Checker], and the rest get [Fallback].
func (c *Cascade) Add(name string, h Handler, opts ...HandlerOption) error {
	if h == nil {
		return fmt.Errorf("cascade: handler %q is nil", name)
	}
	var cfg handlerConfig
	for _, o := range opts {
		o(&cfg)
	}

	it := item{
		name:    name,
		handler: h,
		intents: cfg.intents,
		stages:  cfg.stages,
		checker: cfg.checker,
	}
	if cfg.regexp != "" {
		p, err := c.engine.Compile("^(?:" + cfg.regexp + ")")
		if err != nil {
			return fmt.Errorf("cascade: handler %q: %w", name, err)
		}
		it.regexp = p
	}
	switch {
	case cfg.priority != nil:
		it.priority = *cfg.priority
	case len(cfg.stages) > 0:
		it.priority = Stage
	case len(cfg.intents) > 0 || it.regexp != nil:
		it.priority = Intent
	case cfg.checker != nil:
		it.priority = Checker
	default:
		it.priority = Fallback
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.ContainsFunc(c.items, func(o item) bool { return o.name == name }) {
		return fmt.Errorf("cascade: handler %q already registered", name)
	}
	c.items = append(c.items, it)
	return nil
}

// Handlers lists handler names in registration order.
func (c *Cascade) Handlers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.items))
	for i, it := range c.items {
		names[i] = it.name
	}
	return names
}

// AddPostprocessor registers fn under name, replacing an earlier one.
func (c *Cascade) AddPostprocessor(name string, fn Postprocessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.postprocessors[name]; ok {
		slog.Warn("registering postprocessor for a second time", "name", name)
	}
	c.postprocessors[name] = fn
}

// Postprocessor returns the postprocessor registered under name.
func (c *Cascade) Postprocessor(name string) (Postprocessor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.postprocessors[name]
	return fn, ok
}

type candidate struct {
	item  item
	score float64
}

// score returns the intent score of it for t and whether it is eligible.
func (it item) score(t *Turn) (float64, bool) {
	if len(it.stages) > 0 && !slices.Contains(it.stages, t.Stage()) {
		return 0, false
	}
	score := math.Inf(-1)
	for _, name := range it.intents {
		if v, ok := t.Intents[name]; ok && v > score {
			score = v
		}
	}
	if score < 1 && it.regexp != nil && it.regexp.MatchString(t.Text) {
		score = 1
	}
	if (len(it.intents) > 0 || it.regexp != nil) && math.IsInf(score, -1) {
		return 0, false
	}
	return score, true
}

// Dispatch runs the best eligible handler that completes t and returns its
// name. It does nothing for a turn that is already complete.
func (c *Cascade) Dispatch(t *Turn) (string, bool) {
	if t.IsComplete() {
		return "", false
	}

	c.mu.RLock()
	var candidates []candidate
	for _, it := range c.items {
		if score, ok := it.score(t); ok {
			candidates = append(candidates, candidate{item: it, score: score})
		}
	}
	c.mu.RUnlock()

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if n := cmp.Compare(b.item.priority, a.item.priority); n != 0 {
			return n
		}
		return cmp.Compare(b.score, a.score)
	})

	log := slog.Default()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		names := make([]string, len(candidates))
		for i, cand := range candidates {
			names[i] = cand.item.name
		}
		log.Debug("sorted candidates", "handlers", names)
	}

	for _, cand := range candidates {
		if cand.item.checker != nil && !cand.item.checker(t) {
			continue
		}
		cand.item.handler(t)
		if t.IsComplete() {
			c.metrics.RecordDispatch(context.Background(), cand.item.name)
			return cand.item.name, true
		}
	}
	return "", false
}

// Postprocess runs the most recent agenda entry when t is complete and
// control was released. The entry is consumed even when no postprocessor is
// registered for it.
func (c *Cascade) Postprocess(t *Turn) {
	if !t.IsComplete() || !t.CanTakeControl() || len(t.Agenda()) == 0 {
		return
	}
	name, form, ok := t.PopAgenda()
	if !ok {
		return
	}
	slog.Debug("agenda key popped", "name", name)
	fn, ok := c.Postprocessor(name)
	if !ok {
		return
	}
	fn(t, form)
}
