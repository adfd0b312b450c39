package dialog

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gopkg.in/yaml.v3"
)

// Phrase is a response template with one or more text variants.
//
// In YAML a phrase is either a plain string or a mapping:
//
//	text: [Привет!, Здравствуйте!]
//	suggests: [Помощь]
//	exit: false
type Phrase struct {
	Name     string   `yaml:"name"`
	Texts    []string `yaml:"-"`
	Suggests []string `yaml:"suggests"`
	Exit     bool     `yaml:"exit"`
}

// NewPhrase returns an unnamed phrase with the given variants.
func NewPhrase(texts ...string) *Phrase {
	return &Phrase{Texts: texts}
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (p *Phrase) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = Phrase{Texts: []string{s}}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("dialog: line %d: phrase must be a string or a mapping", node.Line)
	}
	var raw struct {
		Name     string    `yaml:"name"`
		Text     yaml.Node `yaml:"text"`
		Suggests []string  `yaml:"suggests"`
		Exit     bool      `yaml:"exit"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	texts, err := stringOrList(&raw.Text)
	if err != nil {
		return fmt.Errorf("dialog: line %d: phrase text: %w", node.Line, err)
	}
	*p = Phrase{Name: raw.Name, Texts: texts, Suggests: raw.Suggests, Exit: raw.Exit}
	return nil
}

func stringOrList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		var s string
		err := node.Decode(&s)
		return []string{s}, err
	case yaml.SequenceNode:
		var list []string
		err := node.Decode(&list)
		return list, err
	default:
		return nil, errors.New("must be a string or a list of strings")
	}
}

// Render builds a response from one randomly chosen variant. The variant is
// expanded with [Sample] and parsed as rich text. With a non-nil seed the
// output is repeatable. extraSuggests are appended after the phrase's own.
func (p *Phrase) Render(seed *int64, extraSuggests ...string) (*Response, error) {
	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(uint64(*seed), 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	text := ""
	if len(p.Texts) > 0 {
		text = Sample(p.Texts[rng.IntN(len(p.Texts))], rng)
	}
	resp := NewResponse("")
	if err := resp.SetRichText(text); err != nil {
		return nil, fmt.Errorf("dialog: render phrase %q: %w", p.Name, err)
	}
	resp.Suggests = append(append([]string(nil), p.Suggests...), extraSuggests...)
	if p.Exit {
		resp.Commands = append(resp.Commands, CommandExit)
	}
	return resp, nil
}
