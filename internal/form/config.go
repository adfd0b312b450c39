package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Choice is a fixed answer of a field. In YAML it is either the answer text
// or a mapping with text and next.
type Choice struct {
	Text string `yaml:"text"`

	// Next names the field asked after this option, overriding the field's
	// own Next.
	Next string `yaml:"next"`
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (o *Choice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*o = Choice{Text: node.Value}
		return nil
	}
	type plain Choice
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Choice(p)
	return nil
}

// MatcherConfig selects the matcher used for options.
type MatcherConfig struct {
	Key       string   `yaml:"key"`
	Threshold *float64 `yaml:"threshold"`
}

// Default options matcher.
const (
	DefaultOptionsMatcher   = "levenshtein"
	DefaultOptionsThreshold = 0.8
)

// FieldConfig declares one question of the form.
type FieldConfig struct {
	// Name keys the answer. Default: field_<index>.
	Name string `yaml:"name"`

	// Question is required; Q is its short alias.
	Question string `yaml:"question"`
	Q        string `yaml:"q"`

	// RepeatedQuestion replaces Question when a multivalued field is asked
	// again after its first answer.
	RepeatedQuestion string `yaml:"repeated_question"`

	// ValidateRegexp must match the whole normalized answer. Default: ".*".
	ValidateRegexp string `yaml:"validate_regexp"`

	// ValidateMessage is asked instead of Question after an invalid answer.
	ValidateMessage string `yaml:"validate_message"`

	Options        []Choice       `yaml:"options"`
	ExitOption     *Choice        `yaml:"exit_option"`
	Multivalued    bool           `yaml:"multivalued"`
	Suggests       []string       `yaml:"suggests"`
	Next           string         `yaml:"next"`
	OptionsMatcher *MatcherConfig `yaml:"options_matcher"`
}

// StartConfig controls how the form is started.
type StartConfig struct {
	// Regexp must match the whole normalized message. Default: ".*".
	Regexp string `yaml:"regexp"`

	// Message is an introduction shown before the first question.
	Message  string   `yaml:"message"`
	Suggests []string `yaml:"suggests"`
}

// ExitConfig controls how an active form is left.
type ExitConfig struct {
	Regexp  string `yaml:"regexp"`
	Message string `yaml:"message"`

	// Suggest is appended to the suggests of every question.
	Suggest string `yaml:"suggest"`
}

// FinishConfig holds the message shown after the last answer.
type FinishConfig struct {
	Message string `yaml:"message"`
}

// Config is the declarative definition of a form.
type Config struct {
	FormName string        `yaml:"form_name"`
	Start    StartConfig   `yaml:"start"`
	Exit     ExitConfig    `yaml:"exit"`
	Finish   FinishConfig  `yaml:"finish"`
	Fields   []FieldConfig `yaml:"fields"`

	// DefaultField supplies the fallback ValidateMessage.
	DefaultField *FieldConfig `yaml:"default_field"`
}

// Load reads the form definition at path and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("form: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("form: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML definition from r and validates it.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("form: decode yaml: %w", err)
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

// Validate reports every problem of the definition, joined.
func (c *Config) Validate() error {
	_, err := compile(c)
	return err
}
