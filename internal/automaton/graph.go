package automaton

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

// UniversalState is the pseudo-state whose transitions apply from every
// state. It is never a transition target.
const UniversalState = "universal_state"

const defaultName = "default_automaton"

// State is a node of the automaton.
type State struct {
	Name               string
	Phrase             string
	AdditionalSuggests []string

	// RestorePrevState makes the state transient: after answering from it,
	// the automaton stays in the state it came from.
	RestorePrevState bool
}

// Transition moves the user from PrevState to NextState when Intent fires.
// An empty Intent marks the default transition of PrevState.
type Transition struct {
	Name      string
	Intent    string
	PrevState string
	NextState string
	Priority  float64
}

// graph is the validated automaton built from a [Config].
type graph struct {
	name              string
	initialState      string
	stateOnNewSession string

	states      map[string]*State
	stateOrder  []string
	phrases     map[string]*dialog.Phrase
	intents     map[string]matcher.Intent
	intentOrder []string
	transitions []Transition

	// byIntent indexes transitions by intent, highest priority first.
	byIntent map[string][]Transition
}

func newGraph() *graph {
	g := &graph{
		states:   make(map[string]*State),
		phrases:  make(map[string]*dialog.Phrase),
		intents:  make(map[string]matcher.Intent),
		byIntent: make(map[string][]Transition),
	}
	g.states[UniversalState] = &State{Name: UniversalState}
	return g
}

func (g *graph) addPhrase(name string, p *dialog.Phrase) error {
	if name == "" {
		name = fmt.Sprintf("phrase__%d", len(g.phrases))
	}
	if _, dup := g.phrases[name]; dup {
		return fmt.Errorf("phrase %q declared twice", name)
	}
	cp := *p
	cp.Name = name
	g.phrases[name] = &cp
	return nil
}

func (g *graph) addIntent(name string, in matcher.Intent) (string, error) {
	if name == "" {
		name = fmt.Sprintf("intent__%d", len(g.intents))
	}
	if _, dup := g.intents[name]; dup {
		return "", fmt.Errorf("intent %q declared twice", name)
	}
	in.Examples = slices.Clone(in.Examples)
	in.Regexp = slices.Clone(in.Regexp)
	g.intents[name] = in
	g.intentOrder = append(g.intentOrder, name)
	return name, nil
}

func (g *graph) addTransition(intent, prev, next string, priority *float64) {
	p := 1.0
	if priority != nil {
		p = *priority
	}
	g.transitions = append(g.transitions, Transition{
		Name:      fmt.Sprintf("transition__%d", len(g.transitions)),
		Intent:    intent,
		PrevState: prev,
		NextState: next,
		Priority:  p,
	})
}

func (g *graph) addState(name string, sc StateConfig) error {
	if _, dup := g.states[name]; dup {
		return fmt.Errorf("state %q declared twice", name)
	}
	st := &State{
		Name:               name,
		Phrase:             sc.Phrase,
		RestorePrevState:   sc.RestorePrevState,
		AdditionalSuggests: slices.Clone(sc.AdditionalSuggests),
	}
	var errs []error
	if len(sc.Q) > 0 {
		intent, err := g.addIntent(name, matcher.Intent{Examples: sc.Q})
		if err != nil {
			errs = append(errs, err)
		} else {
			g.addTransition(intent, UniversalState, name, nil)
		}
	}
	if sc.A != nil {
		if err := g.addPhrase(name, sc.A); err != nil {
			errs = append(errs, err)
		}
		st.Phrase = name
	}
	for _, n := range sc.Next {
		if n.Label != "" {
			intent := n.Intent
			if intent == "" {
				examples := slices.Clone(n.Examples)
				if n.Suggest != "" {
					examples = append(examples, n.Suggest)
				}
				var err error
				intent, err = g.addIntent("", matcher.Intent{Examples: examples, Regexp: n.Regexp})
				if err != nil {
					errs = append(errs, err)
					continue
				}
			}
			g.addTransition(intent, name, n.Label, nil)
		}
		if n.Suggest != "" {
			st.AdditionalSuggests = append(st.AdditionalSuggests, n.Suggest)
		}
	}
	if sc.DefaultNext != "" {
		g.addTransition("", name, sc.DefaultNext, nil)
	}
	g.states[name] = st
	g.stateOrder = append(g.stateOrder, name)
	return errors.Join(errs...)
}

// build expands the shorthands of c and validates the resulting graph.
func build(c *Config) (*graph, error) {
	if len(c.States) == 0 {
		return nil, errors.New(`automaton: "states" cannot be empty`)
	}
	g := newGraph()
	var errs []error
	for _, e := range c.Phrases {
		if e.Value == nil {
			errs = append(errs, fmt.Errorf("phrase %q is empty", e.Name))
			continue
		}
		if err := g.addPhrase(e.Name, e.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range c.Intents {
		if _, err := g.addIntent(e.Name, e.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range c.States {
		if e.Name == UniversalState {
			errs = append(errs, fmt.Errorf("state name %q is reserved", UniversalState))
			continue
		}
		if err := g.addState(e.Name, e.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range c.Transitions {
		t := e.Value
		g.addTransition(t.Intent, t.PrevState, t.NextState, t.Priority)
	}

	g.name = c.Options.Name
	if g.name == "" {
		g.name = defaultName
	}
	g.initialState = c.Options.InitialState
	if g.initialState == "" && len(g.stateOrder) > 0 {
		g.initialState = g.stateOrder[0]
	}
	g.stateOnNewSession = c.Options.StateOnNewSession
	if g.stateOnNewSession == "" {
		g.stateOnNewSession = g.initialState
	}

	errs = append(errs, g.validate()...)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("automaton: invalid config: %w", err)
	}

	for _, t := range g.transitions {
		g.byIntent[t.Intent] = append(g.byIntent[t.Intent], t)
	}
	for intent, ts := range g.byIntent {
		slices.SortStableFunc(ts, func(a, b Transition) int {
			switch {
			case a.Priority > b.Priority:
				return -1
			case a.Priority < b.Priority:
				return 1
			}
			return 0
		})
		g.byIntent[intent] = ts
	}
	return g, nil
}

func (g *graph) validate() []error {
	var errs []error
	isTarget := func(name string) bool {
		_, ok := g.states[name]
		return ok && name != UniversalState
	}
	for _, t := range g.transitions {
		if _, ok := g.states[t.PrevState]; !ok {
			errs = append(errs, fmt.Errorf("%s: state %q not found", t.Name, t.PrevState))
		}
		if !isTarget(t.NextState) {
			errs = append(errs, fmt.Errorf("%s: state %q not found", t.Name, t.NextState))
		}
		if _, ok := g.intents[t.Intent]; t.Intent != "" && !ok {
			errs = append(errs, fmt.Errorf("%s: intent %q not found", t.Name, t.Intent))
		}
	}
	for _, name := range g.stateOrder {
		st := g.states[name]
		if st.Phrase == "" {
			errs = append(errs, fmt.Errorf("state %q has no phrase", name))
		} else if _, ok := g.phrases[st.Phrase]; !ok {
			errs = append(errs, fmt.Errorf("state %q: phrase %q not found", name, st.Phrase))
		}
	}
	if !isTarget(g.initialState) {
		errs = append(errs, fmt.Errorf("initial_state %q not found", g.initialState))
	}
	if !isTarget(g.stateOnNewSession) {
		errs = append(errs, fmt.Errorf("state_on_new_session %q not found", g.stateOnNewSession))
	}
	return errs
}

// find returns the target of the best transition triggered by intent from
// state, checking transitions of the universal state as well.
func (g *graph) find(intent, state string) (string, bool) {
	for _, t := range g.byIntent[intent] {
		if t.PrevState == state || t.PrevState == UniversalState {
			return t.NextState, true
		}
	}
	return "", false
}
