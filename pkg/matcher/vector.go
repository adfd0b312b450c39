package matcher

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MrWong99/dialogic/pkg/vectors"
)

const vectorEpsilon = 1e-10

// wordVector converts v to float64, optionally scaling it to unit length.
func wordVector(v []float32, unit bool) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	if unit {
		normalize(out)
	}
	return out
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	n := math.Sqrt(math.Max(sum, vectorEpsilon))
	for i := range v {
		v[i] /= n
	}
}

// ── W2V ──────────────────────────────────────────────────────────────────────

// W2V compares texts by the cosine of their mean word vectors. Tokens
// missing from the vector table are skipped; a text without known tokens
// scores 0 against everything.
type W2V struct {
	*pairwise[[]float64]
}

var _ Extendable = (*W2V)(nil)

// NewW2V returns a mean-vector matcher. It requires [WithVectors].
func NewW2V(opts ...Option) (*W2V, error) {
	s := newSettings(opts)
	if s.vectors == nil {
		return nil, fmt.Errorf("%w: w2v matcher needs a word-vector table", ErrCapabilityMissing)
	}
	table, unit := s.vectors, !s.rawWordVectors
	encode := func(text string) []float64 {
		var sum []float64
		for _, tok := range strings.Fields(text) {
			raw, ok := table.Lookup(tok)
			if !ok {
				continue
			}
			v := wordVector(raw, unit)
			if sum == nil {
				sum = make([]float64, len(v))
			}
			for i := range min(len(sum), len(v)) {
				sum[i] += v[i]
			}
		}
		if sum != nil {
			normalize(sum)
		}
		return sum
	}
	compare := func(a, b []float64) float64 {
		if a == nil || b == nil {
			return 0
		}
		dot := 0.0
		for i := range min(len(a), len(b)) {
			dot += a[i] * b[i]
		}
		return dot
	}
	return &W2V{newPairwise(s, encode, compare)}, nil
}

// ── WMD ──────────────────────────────────────────────────────────────────────

type wmdDoc struct {
	tokens []string
	vecs   map[string][]float64
}

// WMD compares texts by word mover's distance between their bags of words,
// mapped to a similarity as 1 - d²/2 (exact for unit word vectors).
type WMD struct {
	*pairwise[*wmdDoc]
}

var _ Extendable = (*WMD)(nil)

// NewWMD returns a word mover's distance matcher. It requires both
// [WithVectors] and [WithSolver].
func NewWMD(opts ...Option) (*WMD, error) {
	s := newSettings(opts)
	if s.vectors == nil {
		return nil, fmt.Errorf("%w: wmd matcher needs a word-vector table", ErrCapabilityMissing)
	}
	if s.solver == nil {
		return nil, fmt.Errorf("%w: wmd matcher needs an optimal-transport solver", ErrCapabilityMissing)
	}
	table, unit, solver := s.vectors, !s.rawWordVectors, s.solver
	encode := func(text string) *wmdDoc {
		doc := &wmdDoc{vecs: make(map[string][]float64)}
		for _, tok := range strings.Fields(text) {
			raw, ok := table.Lookup(tok)
			if !ok {
				continue
			}
			doc.tokens = append(doc.tokens, tok)
			if _, seen := doc.vecs[tok]; !seen {
				doc.vecs[tok] = wordVector(raw, unit)
			}
		}
		if len(doc.tokens) == 0 {
			return nil
		}
		return doc
	}
	compare := func(one, another *wmdDoc) float64 {
		if one == nil || another == nil {
			return 0
		}
		d, err := wordMoverDistance(one, another, solver)
		if err != nil {
			return 0
		}
		return 1 - d*d/2
	}
	return &WMD{newPairwise(s, encode, compare)}, nil
}

func wordMoverDistance(one, another *wmdDoc, solver Solver) (float64, error) {
	vocab := make([]string, 0, len(one.vecs)+len(another.vecs))
	for w := range one.vecs {
		vocab = append(vocab, w)
	}
	for w := range another.vecs {
		if _, ok := one.vecs[w]; !ok {
			vocab = append(vocab, w)
		}
	}
	slices.Sort(vocab)
	index := make(map[string]int, len(vocab))
	for i, w := range vocab {
		index[w] = i
	}

	cost := make([][]float64, len(vocab))
	for i, t1 := range vocab {
		cost[i] = make([]float64, len(vocab))
		v1, ok1 := one.vecs[t1]
		if !ok1 {
			continue
		}
		for j, t2 := range vocab {
			v2, ok2 := another.vecs[t2]
			if !ok2 {
				continue
			}
			cost[i][j] = euclidean(v1, v2)
		}
	}
	return solver.EMD(bagOfWords(one.tokens, index), bagOfWords(another.tokens, index), cost)
}

func bagOfWords(tokens []string, index map[string]int) []float64 {
	bow := make([]float64, len(index))
	share := 1 / float64(len(tokens))
	for _, t := range tokens {
		bow[index[t]] += share
	}
	return bow
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range min(len(a), len(b)) {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
