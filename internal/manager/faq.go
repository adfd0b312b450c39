package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

// DefaultFAQMatcher is the matcher name used when none is configured.
const DefaultFAQMatcher = "tf-idf"

// Texts is a string or a list of strings in YAML.
type Texts []string

// UnmarshalYAML implements [yaml.Unmarshaler].
func (t *Texts) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = Texts{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	default:
		return fmt.Errorf("line %d: must be a string or a list of strings", node.Line)
	}
}

// FAQEntry pairs question variants with answer variants.
type FAQEntry struct {
	Questions Texts `yaml:"q"`
	Answers   Texts `yaml:"a"`
	Suggests  Texts `yaml:"s"`
}

// LoadFAQ reads FAQ entries from the YAML list at path.
func LoadFAQ(path string) ([]FAQEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manager: read faq %q: %w", path, err)
	}
	entries, err := ParseFAQ(data)
	if err != nil {
		return nil, fmt.Errorf("manager: parse faq %q: %w", path, err)
	}
	return entries, nil
}

// ParseFAQ decodes FAQ entries.
func ParseFAQ(data []byte) ([]FAQEntry, error) {
	var entries []FAQEntry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manager: decode faq: %w", err)
	}
	return entries, nil
}

// FAQOption configures a [FAQ].
type FAQOption func(*FAQ)

// WithFAQMatcher sets the unfitted question matcher. Default: a tf-idf
// matcher from the registry.
func WithFAQMatcher(m matcher.Matcher) FAQOption {
	return func(f *FAQ) { f.matcher = m }
}

// WithFAQSeed makes the choice among answer variants deterministic.
func WithFAQSeed(seed int64) FAQOption {
	return func(f *FAQ) { f.seed = &seed }
}

// FAQ answers with one of the answers of the best matching question.
type FAQ struct {
	matcher matcher.Matcher
	answers []*dialog.Phrase
	seed    *int64
}

var _ Manager = (*FAQ)(nil)

// NewFAQ fits the question matcher on entries.
func NewFAQ(entries []FAQEntry, opts ...FAQOption) (*FAQ, error) {
	f := &FAQ{}
	for _, o := range opts {
		o(f)
	}
	if f.matcher == nil {
		m, err := matcher.New(DefaultFAQMatcher)
		if err != nil {
			return nil, fmt.Errorf("manager: faq: %w", err)
		}
		f.matcher = m
	}

	var (
		errs          []error
		texts, labels []string
	)
	for i, e := range entries {
		if len(e.Questions) == 0 {
			errs = append(errs, fmt.Errorf("entry %d has no questions", i))
		}
		if len(e.Answers) == 0 {
			errs = append(errs, fmt.Errorf("entry %d has no answers", i))
		}
		label := strconv.Itoa(i)
		for _, q := range e.Questions {
			texts = append(texts, textnorm.Normalize(q))
			labels = append(labels, label)
		}
		f.answers = append(f.answers, &dialog.Phrase{
			Name:     "faq_" + label,
			Texts:    e.Answers,
			Suggests: e.Suggests,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("manager: invalid faq: %w", err)
	}
	if err := f.matcher.Fit(texts, labels); err != nil {
		return nil, fmt.Errorf("manager: fit faq: %w", err)
	}
	return f, nil
}

// Respond implements [Manager].
func (f *FAQ) Respond(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
	label, score, ok := matcher.Match(f.matcher, textnorm.Normalize(dc.Text), true)
	if !ok {
		return nil, nil
	}
	i, err := strconv.Atoi(label)
	if err != nil || i < 0 || i >= len(f.answers) {
		return nil, fmt.Errorf("manager: faq: unexpected label %q", label)
	}
	resp, err := f.answers[i].Render(f.seed)
	if err != nil {
		return nil, fmt.Errorf("manager: faq: %w", err)
	}
	resp.Confidence = score
	resp.Label = label
	return resp, nil
}
