package matcher

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Patterns is a list of regular expressions that may be written in YAML as
// either a single string or a sequence of strings.
type Patterns []string

// UnmarshalYAML implements [yaml.Unmarshaler].
func (p *Patterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = Patterns{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("matcher: line %d: regexp must be a string or a list of strings", node.Line)
	}
}

// Intent describes how an intent is recognized.
type Intent struct {
	// Examples are reference utterances for the base matcher.
	Examples []string `yaml:"examples"`

	// Regexp lists expressions that trigger the intent with score 1.
	Regexp Patterns `yaml:"regexp"`

	// Threshold overrides the matcher threshold for this intent when set.
	Threshold *float64 `yaml:"threshold"`
}

// MakeWithRegex fits base on the examples of every intent, fits a regex
// matcher on their expressions, and combines both into a [Max] ensemble. An
// utterance thus matches an intent when its closest example or one of its
// expressions fires. Per-intent thresholds are applied to base and to the
// ensemble when base supports them. regexOpts configure the regex matcher.
func MakeWithRegex(base Matcher, intents map[string]Intent, regexOpts ...Option) (*Max, error) {
	names := make([]string, 0, len(intents))
	for name := range intents {
		names = append(names, name)
	}
	slices.Sort(names)

	var texts, labels, reTexts, reLabels []string
	thresholds := make(map[string]float64)
	for _, name := range names {
		in := intents[name]
		for _, ex := range in.Examples {
			texts = append(texts, ex)
			labels = append(labels, name)
		}
		for _, re := range in.Regexp {
			reTexts = append(reTexts, re)
			reLabels = append(reLabels, name)
		}
		if in.Threshold != nil {
			thresholds[name] = *in.Threshold
		}
	}

	if lt, ok := base.(LabelThresholder); ok {
		for label, v := range thresholds {
			lt.SetThreshold(label, v)
		}
	}
	if err := base.Fit(texts, labels); err != nil {
		return nil, fmt.Errorf("matcher: fit base matcher: %w", err)
	}
	re := NewRegex(regexOpts...)
	if err := re.Fit(reTexts, reLabels); err != nil {
		return nil, fmt.Errorf("matcher: fit regex matcher: %w", err)
	}

	// The ensemble threshold follows the base matcher so that regex hits
	// (score 1) and base hits are filtered alike.
	opts := []Option{WithThreshold(base.Threshold("")), WithLabelThresholds(thresholds)}
	return NewMax([]Matcher{base, re}, opts...)
}
