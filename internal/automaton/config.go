package automaton

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
)

// Entry is one named item of an [Ordered] mapping.
type Entry[T any] struct {
	Name  string
	Value T
}

// Ordered is a YAML mapping that keeps the declaration order of its keys.
type Ordered[T any] []Entry[T]

// UnmarshalYAML implements [yaml.Unmarshaler].
func (o *Ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("automaton: line %d: expected a mapping", node.Line)
	}
	out := make(Ordered[T], 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var e Entry[T]
		if err := node.Content[i].Decode(&e.Name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&e.Value); err != nil {
			return fmt.Errorf("automaton: %q: %w", e.Name, err)
		}
		out = append(out, e)
	}
	*o = out
	return nil
}

// Strings is a list of strings that may be written as a single string.
type Strings []string

// UnmarshalYAML implements [yaml.Unmarshaler].
func (s *Strings) UnmarshalYAML(node *yaml.Node) error {
	var p matcher.Patterns
	if err := p.UnmarshalYAML(node); err != nil {
		return err
	}
	*s = Strings(p)
	return nil
}

// Config is the declarative definition of an automaton.
type Config struct {
	States      Ordered[StateConfig]      `yaml:"states"`
	Intents     Ordered[matcher.Intent]   `yaml:"intents"`
	Transitions Ordered[TransitionConfig] `yaml:"transitions"`
	Phrases     Ordered[*dialog.Phrase]   `yaml:"phrases"`
	Options     Options                   `yaml:"options"`

	// Expressions expand {{NAME}} placeholders in intent expressions.
	Expressions matcher.Expressions `yaml:"expressions"`
}

// Options are the automaton-wide settings.
type Options struct {
	// Name keys the automaton's state in the user object. Default:
	// "default_automaton".
	Name string `yaml:"name"`

	// InitialState is entered by users without a stored state. Default:
	// the first declared state.
	InitialState string `yaml:"initial_state"`

	// StateOnNewSession is entered on an empty message that opens a new
	// session. Default: InitialState.
	StateOnNewSession string `yaml:"state_on_new_session"`

	// Matcher is the registered matcher used for intent examples. Default:
	// "exact".
	Matcher string `yaml:"matcher"`

	// Threshold overrides the matcher's global threshold.
	Threshold *float64 `yaml:"threshold"`
}

// StateConfig declares a state. Shorthands: Q adds an intent with these
// examples and a transition to this state from every state; A is an inline
// phrase; Next declares outgoing transitions; DefaultNext is taken when no
// intent fires.
type StateConfig struct {
	Phrase             string         `yaml:"phrase"`
	A                  *dialog.Phrase `yaml:"a"`
	Q                  Strings        `yaml:"q"`
	Next               []NextConfig   `yaml:"next"`
	DefaultNext        string         `yaml:"default_next"`
	RestorePrevState   bool           `yaml:"restore_prev_state"`
	AdditionalSuggests []string       `yaml:"additional_suggests"`
}

// NextConfig is an inline transition. Without Intent, a new intent is
// created from Examples, Regexp and Suggest. Suggest is also shown as a
// suggest button of the state. Without Label only the suggest is added.
type NextConfig struct {
	Label    string           `yaml:"label"`
	Intent   string           `yaml:"intent"`
	Examples []string         `yaml:"examples"`
	Regexp   matcher.Patterns `yaml:"regexp"`
	Suggest  string           `yaml:"suggest"`
}

// TransitionConfig declares a transition. An empty Intent makes it the
// default transition of PrevState. PrevState may be [UniversalState].
type TransitionConfig struct {
	Intent    string `yaml:"intent"`
	PrevState string `yaml:"prev_state"`
	NextState string `yaml:"next_state"`

	// Priority orders transitions triggered by the same intent. Default 1.
	Priority *float64 `yaml:"priority"`
}

// Load reads the automaton definition at path and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("automaton: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("automaton: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML definition from r and validates it.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("automaton: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is [LoadFromReader] for in-memory definitions.
func Parse(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// Validate checks that every referenced state, intent and phrase exists.
// It returns all problems joined.
func (c *Config) Validate() error {
	_, err := build(c)
	return err
}
