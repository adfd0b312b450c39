package matcher

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// pairwise is a 1-nearest-neighbour matcher: every fitted text is encoded
// once and compared with the encoded input on each call.
type pairwise[T any] struct {
	Thresholds

	preprocess func(string) string
	encode     func(string) T
	compare    func(input, ref T) float64

	mu     sync.RWMutex
	refs   []T
	labels []string
}

func newPairwise[T any](s settings, encode func(string) T, compare func(T, T) float64) *pairwise[T] {
	return &pairwise[T]{
		Thresholds: s.thresholds,
		preprocess: s.preprocess,
		encode:     encode,
		compare:    compare,
	}
}

// Fit implements [Matcher].
func (p *pairwise[T]) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	p.Reset()
	return p.PartialFit(texts, labels)
}

// PartialFit implements [Extendable].
func (p *pairwise[T]) PartialFit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	encoded := make([]T, len(texts))
	for i, t := range texts {
		encoded[i] = p.encode(p.preprocess(t))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs = append(p.refs, encoded...)
	p.labels = append(p.labels, labels...)
	return nil
}

// Reset implements [Extendable].
func (p *pairwise[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs, p.labels = nil, nil
}

// Scores implements [Matcher].
func (p *pairwise[T]) Scores(text string) []Score {
	in := p.encode(p.preprocess(text))
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Score, len(p.refs))
	for i, ref := range p.refs {
		out[i] = Score{Label: p.labels[i], Value: p.compare(in, ref)}
	}
	return out
}

// ── Exact ────────────────────────────────────────────────────────────────────

// Exact scores 1 when the normalized input equals a normalized reference.
// Non-matching references are omitted from [Exact.Scores].
type Exact struct {
	*pairwise[string]
}

var _ Extendable = (*Exact)(nil)

// NewExact returns an exact-match matcher.
func NewExact(opts ...Option) *Exact {
	s := newSettings(opts)
	return &Exact{newPairwise(s,
		func(t string) string { return t },
		func(a, b string) float64 {
			if a == b {
				return 1
			}
			return 0
		},
	)}
}

// Scores implements [Matcher].
func (e *Exact) Scores(text string) []Score {
	all := e.pairwise.Scores(text)
	out := all[:0]
	for _, s := range all {
		if s.Value == 1 {
			out = append(out, s)
		}
	}
	return out
}

// ── Jaccard ──────────────────────────────────────────────────────────────────

type tokenSet map[string]struct{}

// Jaccard scores the intersection-over-union of whitespace token sets.
type Jaccard struct {
	*pairwise[tokenSet]
}

var _ Extendable = (*Jaccard)(nil)

// NewJaccard returns a token-set overlap matcher.
func NewJaccard(opts ...Option) *Jaccard {
	s := newSettings(opts)
	return &Jaccard{newPairwise(s, toTokenSet, jaccard)}
}

func toTokenSet(text string) tokenSet {
	set := make(tokenSet)
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b tokenSet) float64 {
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// ── TextDistance ─────────────────────────────────────────────────────────────

// sequence is a text prepared for string-similarity metrics.
type sequence struct {
	text  string
	items []string
	chars bool
}

// TextDistance scores texts with a normalized string-similarity metric,
// over characters or over words.
type TextDistance struct {
	*pairwise[sequence]
	metric  string
	byWords bool
}

var _ Extendable = (*TextDistance)(nil)

// NewTextDistance returns a matcher using the metric set with [WithMetric]
// (default "cosine") over words or characters ([WithByWords], default words).
func NewTextDistance(opts ...Option) (*TextDistance, error) {
	s := newSettings(opts)
	sim, ok := similarityFuncs[s.metric]
	if !ok {
		return nil, fmt.Errorf("%w: text distance metric %q", ErrUnknownMatcher, s.metric)
	}
	byWords := s.byWords
	encode := func(t string) sequence {
		if byWords {
			return sequence{text: t, items: strings.Fields(t)}
		}
		items := make([]string, 0, len(t))
		for _, r := range t {
			items = append(items, string(r))
		}
		return sequence{text: t, items: items, chars: true}
	}
	return &TextDistance{
		pairwise: newPairwise(s, encode, sim),
		metric:   s.metric,
		byWords:  byWords,
	}, nil
}

// Metric returns the name of the similarity metric.
func (m *TextDistance) Metric() string { return m.metric }

var similarityFuncs = map[string]func(a, b sequence) float64{
	"levenshtein":  levenshteinSimilarity,
	"cosine":       cosineSimilarity,
	"jaccard":      multisetJaccard,
	"jaro_winkler": jaroWinklerSimilarity,
}

// levenshteinSimilarity is 1 - distance / max(len(a), len(b)).
func levenshteinSimilarity(a, b sequence) float64 {
	longest := max(len(a.items), len(b.items))
	if longest == 0 {
		return 1
	}
	var dist int
	if a.chars && b.chars {
		dist = matchr.Levenshtein(a.text, b.text)
	} else {
		dist = editDistance(a.items, b.items)
	}
	return 1 - float64(dist)/float64(longest)
}

func editDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func counts(items []string) map[string]int {
	c := make(map[string]int, len(items))
	for _, it := range items {
		c[it]++
	}
	return c
}

func multisetIntersection(a, b []string) int {
	ca, cb := counts(a), counts(b)
	n := 0
	for k, x := range ca {
		n += min(x, cb[k])
	}
	return n
}

// cosineSimilarity is |a ∩ b| / sqrt(|a|·|b|) over multisets.
func cosineSimilarity(a, b sequence) float64 {
	if len(a.items) == 0 && len(b.items) == 0 {
		return 1
	}
	if len(a.items) == 0 || len(b.items) == 0 {
		return 0
	}
	inter := multisetIntersection(a.items, b.items)
	return float64(inter) / math.Sqrt(float64(len(a.items)*len(b.items)))
}

func multisetJaccard(a, b sequence) float64 {
	if len(a.items) == 0 && len(b.items) == 0 {
		return 1
	}
	inter := multisetIntersection(a.items, b.items)
	union := len(a.items) + len(b.items) - inter
	return float64(inter) / float64(union)
}

func jaroWinklerSimilarity(a, b sequence) float64 {
	if a.text == "" && b.text == "" {
		return 1
	}
	return matchr.JaroWinkler(a.text, b.text, false)
}
