package matcher

import (
	"math"
	"strings"
	"sync"
)

// termVector maps a token to its weight.
type termVector map[string]float64

// TFIDF compares texts by the cosine of their weighted term vectors. A term
// weighs tf / ln(smooth + df) times its stopword weight, where df is the
// number of fitted texts containing the term.
type TFIDF struct {
	Thresholds

	preprocess func(string) string
	stopwords  map[string]float64
	smooth     float64
	ngram      int

	mu     sync.RWMutex
	docs   [][]string
	labels []string
	df     map[string]int
	refs   []termVector
}

var _ Extendable = (*TFIDF)(nil)

// NewTFIDF returns a tf-idf matcher. See [WithSmooth], [WithNGram],
// [WithStopwords] and [WithStopwordWeights].
func NewTFIDF(opts ...Option) *TFIDF {
	s := newSettings(opts)
	if !(s.smooth > 1) {
		s.smooth = DefaultSmooth
	}
	return &TFIDF{
		Thresholds: s.thresholds,
		preprocess: s.preprocess,
		stopwords:  s.stopwords,
		smooth:     s.smooth,
		ngram:      s.ngram,
		df:         make(map[string]int),
	}
}

// Fit implements [Matcher].
func (m *TFIDF) Fit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	m.Reset()
	return m.PartialFit(texts, labels)
}

// PartialFit implements [Extendable]. Document frequencies are updated and
// every reference vector is reweighted.
func (m *TFIDF) PartialFit(texts, labels []string) error {
	if err := checkLengths(texts, labels); err != nil {
		return err
	}
	docs := make([][]string, len(texts))
	for i, t := range texts {
		docs[i] = m.tokenize(m.preprocess(t))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, tok := range doc {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			m.df[tok]++
		}
	}
	m.docs = append(m.docs, docs...)
	m.labels = append(m.labels, labels...)
	m.refs = make([]termVector, len(m.docs))
	for i, doc := range m.docs {
		m.refs[i] = m.weigh(doc)
	}
	return nil
}

// Reset implements [Extendable].
func (m *TFIDF) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs, m.labels, m.refs = nil, nil, nil
	m.df = make(map[string]int)
}

// Scores implements [Matcher].
func (m *TFIDF) Scores(text string) []Score {
	tokens := m.tokenize(m.preprocess(text))
	m.mu.RLock()
	defer m.mu.RUnlock()
	in := m.weigh(tokens)
	out := make([]Score, len(m.refs))
	for i, ref := range m.refs {
		out[i] = Score{Label: m.labels[i], Value: cosineTerms(in, ref)}
	}
	return out
}

// weigh must be called with m.mu held.
func (m *TFIDF) weigh(tokens []string) termVector {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	vec := make(termVector, len(tf))
	for w, n := range tf {
		weight := 1.0
		if sw, ok := m.stopwords[w]; ok {
			weight = sw
		}
		vec[w] = float64(n) / math.Log(m.smooth+float64(m.df[w])) * weight
	}
	return vec
}

func (m *TFIDF) tokenize(text string) []string {
	words := strings.Fields(text)
	if m.ngram <= 1 {
		return words
	}
	padded := make([]string, 0, len(words)+2)
	padded = append(padded, "BOS")
	padded = append(padded, words...)
	padded = append(padded, "EOS")
	out := append([]string(nil), padded...)
	for i := 0; i+m.ngram <= len(padded); i++ {
		out = append(out, strings.Join(padded[i:i+m.ngram], "_"))
	}
	return out
}

func dotTerms(a, b termVector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	sum := 0.0
	for k, v := range a {
		sum += v * b[k]
	}
	return sum
}

func cosineTerms(a, b termVector) float64 {
	dot := dotTerms(a, b)
	if math.Abs(dot) < 1e-6 {
		return 0
	}
	return dot / math.Sqrt(dotTerms(a, a)*dotTerms(b, b))
}
