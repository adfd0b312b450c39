package matcher

import (
	"strings"
	"sync"
)

// Regex scores 1 when the text matches one of a label's expressions and 0
// otherwise. By default the expressions of a label are OR-merged into one
// pattern and each alternative is anchored at both ends.
//
// Unlike the other variants, Regex sees the text unchanged unless a
// preprocessing option is given.
type Regex struct {
	Thresholds

	preprocess func(string) string
	engine     Engine
	anchors    bool
	merge      bool

	mu       sync.RWMutex
	patterns []Pattern
	labels   []string
}

var _ Matcher = (*Regex)(nil)

// NewRegex returns a regex matcher. See [WithAnchors], [WithMerge] and
// [WithEngine].
func NewRegex(opts ...Option) *Regex {
	s := newSettings(opts)
	pre := func(t string) string { return t }
	if s.preprocessSet {
		pre = s.preprocess
	}
	return &Regex{
		Thresholds: s.thresholds,
		preprocess: pre,
		engine:     s.engine,
		anchors:    s.anchors,
		merge:      s.merge,
	}
}

// Fit implements [Matcher]. texts are expressions; the first one that fails
// to compile aborts the fit and leaves the previous fit in place.
func (m *Regex) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}

	var (
		order []string
		parts = make(map[string][]string)
	)
	for i, expr := range texts {
		label := labels[i]
		if _, ok := parts[label]; !ok {
			order = append(order, label)
		}
		parts[label] = append(parts[label], expr)
	}

	var (
		patterns []Pattern
		pLabels  []string
	)
	for _, label := range order {
		exprs := parts[label]
		if m.merge {
			wrapped := make([]string, len(exprs))
			for i, e := range exprs {
				wrapped[i] = m.wrap(e)
			}
			p, err := m.compile(strings.Join(wrapped, "|"))
			if err != nil {
				return err
			}
			patterns = append(patterns, p)
			pLabels = append(pLabels, label)
			continue
		}
		for _, e := range exprs {
			p, err := m.compile(m.wrap(e))
			if err != nil {
				return err
			}
			patterns = append(patterns, p)
			pLabels = append(pLabels, label)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns, m.labels = patterns, pLabels
	return nil
}

// wrap anchors a single expression. The group keeps a top-level
// alternation inside the anchors.
func (m *Regex) wrap(expr string) string {
	if m.anchors {
		return "^(?:" + expr + ")$"
	}
	return expr
}

// compile groups the alternatives. Without anchors the group is pinned to
// the start of the text, so patterns match a prefix rather than anywhere.
func (m *Regex) compile(alternatives string) (Pattern, error) {
	if m.anchors {
		return m.engine.Compile("(?:" + alternatives + ")")
	}
	return m.engine.Compile("^(?:" + alternatives + ")")
}

// Scores implements [Matcher].
func (m *Regex) Scores(text string) []Score {
	text = m.preprocess(text)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Score, len(m.patterns))
	for i, p := range m.patterns {
		v := 0.0
		if p.MatchString(text) {
			v = 1
		}
		out[i] = Score{Label: m.labels[i], Value: v}
	}
	return out
}
