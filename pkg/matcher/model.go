package matcher

import (
	"fmt"
	"log/slog"
	"sync"
)

// Classifier is a probabilistic text classifier.
type Classifier interface {
	// Fit trains the classifier on labelled texts.
	Fit(texts, labels []string) error

	// PredictProba returns one probability per entry of Classes.
	PredictProba(text string) ([]float64, error)

	// Classes lists the labels known after Fit, in probability order.
	Classes() []string
}

// ModelBased turns the probability vector of a [Classifier] into scores.
type ModelBased struct {
	Thresholds

	preprocess func(string) string
	mu         sync.RWMutex
	model      Classifier
}

var _ Matcher = (*ModelBased)(nil)

// NewModelBased returns a matcher backed by the classifier given with
// [WithClassifier]. Texts are passed to the classifier unchanged unless a
// preprocessing option is given.
func NewModelBased(opts ...Option) (*ModelBased, error) {
	s := newSettings(opts)
	if s.classifier == nil {
		return nil, fmt.Errorf("%w: model matcher needs a classifier", ErrCapabilityMissing)
	}
	pre := func(t string) string { return t }
	if s.preprocessSet {
		pre = s.preprocess
	}
	return &ModelBased{Thresholds: s.thresholds, preprocess: pre, model: s.classifier}, nil
}

// Fit implements [Matcher].
func (m *ModelBased) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = m.preprocess(t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.model.Fit(prepared, labels); err != nil {
		return fmt.Errorf("matcher: fit classifier: %w", err)
	}
	return nil
}

// Scores implements [Matcher]. A failing prediction yields no scores.
func (m *ModelBased) Scores(text string) []Score {
	m.mu.RLock()
	defer m.mu.RUnlock()
	probs, err := m.model.PredictProba(m.preprocess(text))
	if err != nil {
		slog.Warn("matcher: classifier prediction failed", "err", err)
		return nil
	}
	classes := m.model.Classes()
	out := make([]Score, 0, len(classes))
	for i := range min(len(classes), len(probs)) {
		out = append(out, Score{Label: classes[i], Value: probs[i]})
	}
	return out
}
