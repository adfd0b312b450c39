// Package matcher scores free-form utterances against labelled reference
// texts.
//
// Every variant implements [Matcher]: it is fitted on parallel slices of
// texts and labels and then returns one [Score] per reference it compares
// against. The package-level helpers [Match] and [AggregateScores] turn those
// raw scores into a winning label or a per-label confidence map, applying
// the matcher's global or per-label thresholds.
//
// Variants are selected by name through the registry (see [New]):
//
//	m, err := matcher.New("tf-idf", matcher.WithThreshold(0.3))
//	if err != nil { ... }
//	_ = m.Fit([]string{"добрый день", "который час"}, []string{"hello", "time"})
//	label, score, ok := matcher.Match(m, "добрый вечер", true)
//
// Fitting mutates a matcher; scoring only reads it. Fit a shared matcher once
// at startup, or synchronize externally, before scoring concurrently.
package matcher

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrUnknownMatcher is returned by [New] for names with no registered factory.
	ErrUnknownMatcher = errors.New("matcher: unknown matcher")

	// ErrCapabilityMissing is returned when a variant is built without a
	// collaborator it cannot work without, such as a word-vector table or an
	// optimal-transport solver.
	ErrCapabilityMissing = errors.New("matcher: capability missing")

	// ErrLengthMismatch is returned by Fit when texts and labels differ in length.
	ErrLengthMismatch = errors.New("matcher: texts and labels differ in length")
)

// DefaultThreshold is the global confidence threshold of a new matcher.
const DefaultThreshold = 0.5

// Score is the similarity of an input to one labelled reference.
type Score struct {
	Label string
	Value float64
}

// Matcher is a fitted text classifier with confidences.
type Matcher interface {
	// Fit replaces any previous fit with the given examples.
	Fit(texts, labels []string) error

	// Scores compares text with every fitted reference. Labels may repeat;
	// the order follows fit order and is stable between calls.
	Scores(text string) []Score

	// Threshold returns the minimal accepted score for label.
	Threshold(label string) float64
}

// Extendable is a [Matcher] that can learn incrementally.
type Extendable interface {
	Matcher

	// PartialFit adds examples while keeping the ones added before.
	PartialFit(texts, labels []string) error

	// Reset forgets every example.
	Reset()
}

// Thresholds holds a global threshold and optional per-label overrides.
// Variants embed it to implement [Matcher.Threshold].
type Thresholds struct {
	Default  float64
	PerLabel map[string]float64
}

// Threshold implements [Matcher.Threshold].
func (t *Thresholds) Threshold(label string) float64 {
	if v, ok := t.PerLabel[label]; ok {
		return v
	}
	return t.Default
}

// SetThreshold overrides the threshold of a single label.
func (t *Thresholds) SetThreshold(label string, v float64) {
	if t.PerLabel == nil {
		t.PerLabel = make(map[string]float64)
	}
	t.PerLabel[label] = v
}

// LabelThresholder is implemented by matchers that accept per-label
// threshold overrides after construction.
type LabelThresholder interface {
	SetThreshold(label string, v float64)
}

// Match returns the label most similar to text and its score. Only scores
// that clear their label's threshold compete when useThreshold is true.
// Ties keep the first label encountered. When nothing qualifies, Match
// returns ("", -Inf, false).
func Match(m Matcher, text string, useThreshold bool) (label string, score float64, ok bool) {
	score = math.Inf(-1)
	for _, s := range m.Scores(text) {
		if useThreshold && s.Value < m.Threshold(s.Label) {
			continue
		}
		if s.Value > score {
			label, score, ok = s.Label, s.Value, true
		}
	}
	return label, score, ok
}

// AggregateScores collapses the scores of text to the highest value per
// label. With useThreshold, labels whose scores never clear the threshold
// are dropped; surviving values are never altered.
func AggregateScores(m Matcher, text string, useThreshold bool) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range m.Scores(text) {
		if useThreshold && s.Value < m.Threshold(s.Label) {
			continue
		}
		if prev, seen := out[s.Label]; !seen || s.Value > prev {
			out[s.Label] = s.Value
		}
	}
	return out
}

// FitDict fits m on a label → examples mapping. Labels are visited in
// sorted order so that the resulting fit order is deterministic.
func FitDict(m Matcher, examples map[string][]string) error {
	texts, labels := flatten(examples)
	return m.Fit(texts, labels)
}

// PartialFitDict is the incremental counterpart of [FitDict].
func PartialFitDict(m Extendable, examples map[string][]string) error {
	texts, labels := flatten(examples)
	return m.PartialFit(texts, labels)
}

func flatten(examples map[string][]string) (texts, labels []string) {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, label := range keys {
		for _, text := range examples[label] {
			texts = append(texts, text)
			labels = append(labels, label)
		}
	}
	return texts, labels
}

func checkLengths(texts, labels []string) error {
	if len(texts) != len(labels) {
		return ErrLengthMismatch
	}
	return nil
}
