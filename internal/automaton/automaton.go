// Package automaton implements a finite-state dialog manager.
//
// States hold phrases and outgoing transitions keyed by intent. Transitions
// declared from [UniversalState] apply from every state. A state marked
// restore_prev_state answers once and leaves the user in the state they
// came from. The current state is kept in the user object under
// automaton.<name>.state_name.
package automaton

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/dialogic/internal/nlu"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

// User-object keys.
const (
	keyAutomaton = "automaton"
	keyState     = "state_name"
	keyPrevState = "prev_state_name"
)

// Option configures a [Manager].
type Option func(*options)

type options struct {
	base   matcher.Matcher
	engine matcher.Engine
	seed   *int64
}

// WithMatcher sets the unfitted matcher for intent examples, overriding
// the configured matcher name.
func WithMatcher(m matcher.Matcher) Option {
	return func(o *options) { o.base = m }
}

// WithEngine sets the regular expression engine for intent expressions.
func WithEngine(e matcher.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithSeed makes phrase rendering deterministic.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

// Manager is a finite-state dialog manager. It is read-only after [New] and
// safe for concurrent use.
type Manager struct {
	g        *graph
	resolver *nlu.Resolver
	seed     *int64
}

// New validates cfg and fits the intent matchers.
func New(cfg *Config, opts ...Option) (*Manager, error) {
	g, err := build(cfg)
	if err != nil {
		return nil, err
	}
	o := options{engine: matcher.StdEngine{}}
	for _, fn := range opts {
		fn(&o)
	}

	base := o.base
	if base == nil {
		name := cfg.Options.Matcher
		if name == "" {
			name = "exact"
		}
		var mopts []matcher.Option
		if cfg.Options.Threshold != nil {
			mopts = append(mopts, matcher.WithThreshold(*cfg.Options.Threshold))
		}
		base, err = matcher.New(name, mopts...)
		if err != nil {
			return nil, fmt.Errorf("automaton: %w", err)
		}
	}

	resolver, err := nlu.New(g.intents,
		nlu.WithBaseMatcher(base),
		nlu.WithEngine(o.engine),
		nlu.WithExpressions(cfg.Expressions),
	)
	if err != nil {
		return nil, fmt.Errorf("automaton: %w", err)
	}
	return &Manager{g: g, resolver: resolver, seed: o.seed}, nil
}

// Name returns the key of the automaton's state in the user object.
func (m *Manager) Name() string { return m.g.name }

// States lists the declared states, the universal state excluded.
func (m *Manager) States() []string { return slices.Clone(m.g.stateOrder) }

// Transitions lists every transition, in declaration order.
func (m *Manager) Transitions() []Transition { return slices.Clone(m.g.transitions) }

// CurrentState returns the state stored in userObject.
func (m *Manager) CurrentState(userObject map[string]any) string {
	state, _ := m.section(userObject)[keyState].(string)
	return state
}

func (m *Manager) section(userObject map[string]any) map[string]any {
	all, _ := userObject[keyAutomaton].(map[string]any)
	sec, _ := all[m.g.name].(map[string]any)
	return sec
}

func (m *Manager) remember(userObject map[string]any, state, prev string) {
	all, ok := userObject[keyAutomaton].(map[string]any)
	if !ok {
		all = make(map[string]any)
		userObject[keyAutomaton] = all
	}
	sec, ok := all[m.g.name].(map[string]any)
	if !ok {
		sec = make(map[string]any)
		all[m.g.name] = sec
	}
	sec[keyState] = state
	if prev != "" {
		sec[keyPrevState] = prev
	}
}

// Respond moves the user along the automaton and renders the phrase of the
// new state. It returns nil when no transition applies.
func (m *Manager) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	log := observe.Logger(ctx)
	userObject := dc.State()

	var prev *State
	if name := m.CurrentState(userObject); name != "" {
		st, ok := m.g.states[name]
		if !ok || name == UniversalState {
			log.Warn("stored automaton state is unknown, starting over", "automaton", m.g.name, "state", name)
		} else {
			prev = st
		}
	}

	var next string
	if prev == nil {
		next = m.g.initialState
		if isEmpty(dc.Text) && dc.SessionIsNew {
			next = m.g.stateOnNewSession
		}
	} else {
		next = m.transition(prev, dc)
	}
	if next == "" {
		return nil, nil
	}

	state := m.g.states[next]
	prevName := ""
	if prev != nil {
		prevName = prev.Name
	}
	if prev != nil && state.RestorePrevState {
		m.remember(userObject, prev.Name, prev.Name)
	} else {
		m.remember(userObject, next, prevName)
	}
	log.Debug("automaton transition", "automaton", m.g.name, "from", prevName, "to", next)

	resp, err := m.g.phrases[state.Phrase].Render(m.seed, state.AdditionalSuggests...)
	if err != nil {
		return nil, fmt.Errorf("automaton: render state %q: %w", next, err)
	}
	resp.UserObject = userObject
	resp.Label = next
	return resp, nil
}

// transition returns the state reached from prev by dc, or "".
func (m *Manager) transition(prev *State, dc *dialog.Context) string {
	if isEmpty(dc.Text) {
		if dc.SessionIsNew {
			return m.g.stateOnNewSession
		}
		return ""
	}
	res := m.resolver.Resolve(dc)
	for _, intent := range m.rank(res.Intents) {
		if next, ok := m.g.find(intent, prev.Name); ok {
			return next
		}
	}
	// Transitions without an intent rank below any matched text.
	if next, ok := m.g.find("", prev.Name); ok {
		return next
	}
	return ""
}

// rank orders fired intents by score, then by declaration order.
func (m *Manager) rank(scores map[string]float64) []string {
	order := make(map[string]int, len(m.g.intentOrder))
	for i, name := range m.g.intentOrder {
		order[name] = i
	}
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		ia, oka := order[a]
		ib, okb := order[b]
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		}
		return strings.Compare(a, b)
	})
	return names
}

func isEmpty(text string) bool { return strings.TrimSpace(text) == "" }
