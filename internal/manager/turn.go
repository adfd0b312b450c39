package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dialogic/internal/cascade"
	"github.com/MrWong99/dialogic/internal/nlu"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

// KeySessionsCount counts the sessions of a user in the user object.
const KeySessionsCount = "sessions_count"

// TurnManager resolves intents, builds a [cascade.Turn] and lets the
// cascade of handlers complete it. It declines when no handler does.
type TurnManager struct {
	resolver *nlu.Resolver
	cascade  *cascade.Cascade
}

var _ Manager = (*TurnManager)(nil)

// NewTurnManager combines a resolver with a handler cascade.
func NewTurnManager(resolver *nlu.Resolver, c *cascade.Cascade) *TurnManager {
	return &TurnManager{resolver: resolver, cascade: c}
}

// Cascade returns the handler cascade, for registering code handlers.
func (m *TurnManager) Cascade() *cascade.Cascade { return m.cascade }

// Respond implements [Manager].
func (m *TurnManager) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	start := time.Now()
	log := observe.Logger(ctx)

	pc := preprocessContext(dc)
	t := cascade.NewTurn(pc, m.resolver.Resolve(pc))
	name, ok := m.cascade.Dispatch(t)
	if !ok {
		log.Debug("no handler completed the turn")
		return nil, nil
	}
	m.cascade.Postprocess(t)

	resp, err := t.MakeResponse()
	if err != nil {
		return nil, fmt.Errorf("manager: turn: %w", err)
	}
	if resp.Handler == "" {
		resp.Handler = name
	}
	log.Debug("turn handled", "handler", name, "took", time.Since(start))
	return resp, nil
}

// preprocessContext returns a copy of dc whose user object forgets the
// stage and counts the session when the session is new.
func preprocessContext(dc *dialog.Context) *dialog.Context {
	pc := *dc
	pc.UserObject = dc.State()
	if pc.SessionIsNew {
		delete(pc.UserObject, cascade.KeyStage)
		pc.UserObject[KeySessionsCount] = sessionsCount(pc.UserObject[KeySessionsCount]) + 1
	}
	return &pc
}

func sessionsCount(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

// TurnConfig declares a turn-based bot: its intents and handlers.
type TurnConfig struct {
	Intents     map[string]matcher.Intent `yaml:"intents"`
	Expressions matcher.Expressions       `yaml:"expressions"`

	// Matcher names the matcher for intent examples. Default: tf-idf.
	Matcher   string   `yaml:"matcher"`
	Threshold *float64 `yaml:"threshold"`

	Handlers []HandlerConfig `yaml:"handlers"`
}

// HandlerConfig is a handler that answers with a phrase.
type HandlerConfig struct {
	Name string `yaml:"name"`

	// Priority is a ladder name such as "strong_intent" or a number.
	Priority string   `yaml:"priority"`
	Intents  []string `yaml:"intents"`
	Stages   []string `yaml:"stages"`
	Regexp   string   `yaml:"regexp"`

	// Checker is a CEL expression over text, intents, forms, stage,
	// new_session and user.
	Checker string `yaml:"checker"`

	Response *dialog.Phrase `yaml:"response"`

	// NextStage is stored as the stage after the turn.
	NextStage      string `yaml:"next_stage"`
	ReleaseControl bool   `yaml:"release_control"`
}

// LoadTurnConfig reads a turn-based bot definition from path.
func LoadTurnConfig(path string) (*TurnConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manager: read turn config %q: %w", path, err)
	}
	cfg, err := ParseTurnConfig(data)
	if err != nil {
		return nil, fmt.Errorf("manager: parse turn config %q: %w", path, err)
	}
	return cfg, nil
}

// ParseTurnConfig decodes a turn-based bot definition.
func ParseTurnConfig(data []byte) (*TurnConfig, error) {
	cfg := &TurnConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manager: decode turn config: %w", err)
	}
	return cfg, nil
}

// TurnOption configures [NewTurnFromConfig].
type TurnOption func(*turnOptions)

type turnOptions struct {
	engine  matcher.Engine
	metrics *observe.Metrics
	seed    *int64

	normalizer *textnorm.Normalizer
	heuristics bool

	matcherOpts []matcher.Option
}

// WithTurnEngine sets the regular expression engine of intents and handlers.
func WithTurnEngine(e matcher.Engine) TurnOption {
	return func(o *turnOptions) { o.engine = e }
}

// WithTurnMetrics sets the metrics recorder. Default: [observe.DefaultMetrics].
func WithTurnMetrics(m *observe.Metrics) TurnOption {
	return func(o *turnOptions) { o.metrics = m }
}

// WithTurnSeed makes phrase rendering deterministic.
func WithTurnSeed(seed int64) TurnOption {
	return func(o *turnOptions) { o.seed = &seed }
}

// WithTurnNormalizer makes the intent matcher compare texts normalized by
// n, typically one with a lemmatizer.
func WithTurnNormalizer(n *textnorm.Normalizer) TurnOption {
	return func(o *turnOptions) { o.normalizer = n }
}

// WithTurnHeuristics enables the built-in yes, no, help and exit intents.
func WithTurnHeuristics(enabled bool) TurnOption {
	return func(o *turnOptions) { o.heuristics = enabled }
}

// WithTurnMatcherOptions passes extra options, such as word vectors or a
// classifier, to the configured intent matcher.
func WithTurnMatcherOptions(opts ...matcher.Option) TurnOption {
	return func(o *turnOptions) { o.matcherOpts = append(o.matcherOpts, opts...) }
}

// NewTurnFromConfig builds the resolver and the cascade of declared
// handlers. Every invalid handler is reported.
func NewTurnFromConfig(cfg *TurnConfig, opts ...TurnOption) (*TurnManager, error) {
	o := turnOptions{engine: matcher.StdEngine{}, metrics: observe.DefaultMetrics()}
	for _, fn := range opts {
		fn(&o)
	}

	nluOpts := []nlu.Option{
		nlu.WithEngine(o.engine),
		nlu.WithExpressions(cfg.Expressions),
		nlu.WithMetrics(o.metrics),
		nlu.WithHeuristics(o.heuristics),
	}
	if o.normalizer != nil {
		nluOpts = append(nluOpts, nlu.WithNormalizer(o.normalizer))
	}
	if cfg.Matcher != "" || cfg.Threshold != nil {
		name := cfg.Matcher
		if name == "" {
			name = DefaultFAQMatcher
		}
		mopts := slices.Clone(o.matcherOpts)
		if o.normalizer != nil {
			mopts = append(mopts, matcher.WithNormalizer(o.normalizer))
		}
		if cfg.Threshold != nil {
			mopts = append(mopts, matcher.WithThreshold(*cfg.Threshold))
		}
		base, err := matcher.New(name, mopts...)
		if err != nil {
			return nil, fmt.Errorf("manager: turn: %w", err)
		}
		nluOpts = append(nluOpts, nlu.WithBaseMatcher(base))
	}
	resolver, err := nlu.New(cfg.Intents, nluOpts...)
	if err != nil {
		return nil, fmt.Errorf("manager: turn: %w", err)
	}

	c := cascade.New(cascade.WithEngine(o.engine), cascade.WithMetrics(o.metrics))
	var errs []error
	for i, hc := range cfg.Handlers {
		if err := addHandler(c, hc, o.seed); err != nil {
			errs = append(errs, fmt.Errorf("handler %d (%q): %w", i, hc.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("manager: invalid turn config: %w", err)
	}
	return NewTurnManager(resolver, c), nil
}

func addHandler(c *cascade.Cascade, hc HandlerConfig, seed *int64) error {
	if hc.Name == "" {
		return errors.New("name is required")
	}
	if hc.Response == nil || len(hc.Response.Texts) == 0 {
		return errors.New("response is required")
	}

	var opts []cascade.HandlerOption
	if hc.Priority != "" {
		p, err := parsePriority(hc.Priority)
		if err != nil {
			return err
		}
		opts = append(opts, cascade.WithPriority(p))
	}
	if len(hc.Intents) > 0 {
		opts = append(opts, cascade.WithIntents(hc.Intents...))
	}
	if len(hc.Stages) > 0 {
		opts = append(opts, cascade.WithStages(hc.Stages...))
	}
	if hc.Regexp != "" {
		opts = append(opts, cascade.WithRegexp(hc.Regexp))
	}
	if hc.Checker != "" {
		check, err := cascade.CompileChecker(hc.Checker)
		if err != nil {
			return err
		}
		opts = append(opts, cascade.WithChecker(check))
	}
	return c.Add(hc.Name, phraseHandler(hc, seed), opts...)
}

func phraseHandler(hc HandlerConfig, seed *int64) cascade.Handler {
	phrase := hc.Response
	return func(t *cascade.Turn) {
		var rng *rand.Rand
		if seed != nil {
			rng = rand.New(rand.NewPCG(uint64(*seed), 0))
		} else {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		t.AddSpace()
		t.ResponseText += dialog.Sample(phrase.Texts[rng.IntN(len(phrase.Texts))], rng)
		t.Suggests = append(t.Suggests, phrase.Suggests...)
		if phrase.Exit {
			t.Commands = append(t.Commands, dialog.CommandExit)
		}
		if hc.NextStage != "" {
			t.SetStage(hc.NextStage)
		}
		if hc.ReleaseControl {
			t.ReleaseControl()
		}
	}
}

func parsePriority(s string) (cascade.Priority, error) {
	if p, ok := cascade.ParsePriority(s); ok {
		return p, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown priority %q", s)
	}
	return cascade.Priority(f), nil
}
