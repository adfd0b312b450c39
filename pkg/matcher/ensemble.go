package matcher

import (
	"errors"
	"math"
)

// ensemble holds the members of [Max] and [WeightedAverage].
type ensemble struct {
	Thresholds
	members []Matcher
}

func newEnsemble(members []Matcher, s settings) (ensemble, error) {
	if len(members) == 0 {
		return ensemble{}, errors.New("matcher: ensemble needs at least one member")
	}
	return ensemble{Thresholds: s.thresholds, members: members}, nil
}

// Fit fits every member on the same examples.
func (e *ensemble) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	for _, m := range e.members {
		if err := m.Fit(texts, labels); err != nil {
			return err
		}
	}
	return nil
}

// Members returns the member matchers.
func (e *ensemble) Members() []Matcher { return e.members }

// memberScores maps each label to the best score every member reached for
// it. Labels are returned in first-seen order. Member thresholds are
// applied only when useThreshold is set.
func (e *ensemble) memberScores(text string, useThreshold bool) (order []string, best map[string][]float64) {
	best = make(map[string][]float64)
	for i, m := range e.members {
		for _, s := range m.Scores(text) {
			row, ok := best[s.Label]
			if !ok {
				row = make([]float64, len(e.members))
				for k := range row {
					row[k] = math.Inf(-1)
				}
				best[s.Label] = row
				order = append(order, s.Label)
			}
			if s.Value <= row[i] {
				continue
			}
			if useThreshold && s.Value < e.Threshold(s.Label) {
				continue
			}
			row[i] = s.Value
		}
	}
	return order, best
}

// Max reports, per label, the highest score reached by any member.
type Max struct {
	ensemble
}

var _ Matcher = (*Max)(nil)

// NewMax combines members into a max ensemble.
func NewMax(members []Matcher, opts ...Option) (*Max, error) {
	e, err := newEnsemble(members, newSettings(opts))
	if err != nil {
		return nil, err
	}
	return &Max{e}, nil
}

// Scores implements [Matcher].
func (m *Max) Scores(text string) []Score {
	order, best := m.memberScores(text, false)
	out := make([]Score, 0, len(order))
	for _, label := range order {
		top := math.Inf(-1)
		for _, v := range best[label] {
			top = math.Max(top, v)
		}
		if math.IsInf(top, -1) {
			continue
		}
		out = append(out, Score{Label: label, Value: top})
	}
	return out
}

// WeightedAverage reports, per label, the weighted mean of every member's
// best score. A member that produced no score for a label counts as 0.
type WeightedAverage struct {
	ensemble
	weights []float64
}

var _ Matcher = (*WeightedAverage)(nil)

// NewWeightedAverage combines members with the weights given by
// [WithWeights] (default: equal). Weights are normalized to sum to 1.
func NewWeightedAverage(members []Matcher, opts ...Option) (*WeightedAverage, error) {
	s := newSettings(opts)
	e, err := newEnsemble(members, s)
	if err != nil {
		return nil, err
	}
	weights := s.weights
	if weights == nil {
		weights = make([]float64, len(members))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(members) {
		return nil, errors.New("matcher: members and weights differ in length")
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, errors.New("matcher: weights must sum to a positive value")
	}
	norm := make([]float64, len(weights))
	for i, w := range weights {
		norm[i] = w / total
	}
	return &WeightedAverage{ensemble: e, weights: norm}, nil
}

// Weights returns the normalized member weights.
func (m *WeightedAverage) Weights() []float64 { return m.weights }

// Scores implements [Matcher].
func (m *WeightedAverage) Scores(text string) []Score {
	order, best := m.memberScores(text, false)
	out := make([]Score, 0, len(order))
	for _, label := range order {
		sum := 0.0
		for i, v := range best[label] {
			if math.IsInf(v, -1) {
				continue
			}
			sum += m.weights[i] * v
		}
		out = append(out, Score{Label: label, Value: sum})
	}
	return out
}
