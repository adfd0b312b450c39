package matcher

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// phoneticDoc is a text with the Double Metaphone codes of its tokens.
type phoneticDoc struct {
	full   string
	tokens []string
	codes  map[string]struct{}
}

// Phonetic matches texts that sound alike, which helps with names and
// loanwords mangled by speech recognition.
//
// Scoring has two stages:
//
//  1. When any Double Metaphone code of the input overlaps with a code of
//     the reference, the score is the best Jaro-Winkler similarity among the
//     full strings, the space-stripped strings, and every token pair, as long
//     as it reaches the phonetic threshold.
//  2. Without phonetic overlap, the same Jaro-Winkler score only counts when
//     it reaches the stricter fuzzy threshold of 0.85.
//
// Anything else scores 0.
type Phonetic struct {
	*pairwise[phoneticDoc]
}

var _ Extendable = (*Phonetic)(nil)

// NewPhonetic returns a phonetic matcher. See [WithPhoneticThreshold].
func NewPhonetic(opts ...Option) *Phonetic {
	s := newSettings(opts)
	phoneticThreshold := s.phoneticThreshold
	encode := func(text string) phoneticDoc {
		tokens := strings.Fields(text)
		return phoneticDoc{full: strings.Join(tokens, " "), tokens: tokens, codes: codesForTokens(tokens)}
	}
	compare := func(in, ref phoneticDoc) float64 {
		if len(in.tokens) == 0 || len(ref.tokens) == 0 {
			return 0
		}
		jw := bestJWScore(in, ref)
		if codesOverlap(in.codes, ref.codes) {
			if jw >= phoneticThreshold {
				return jw
			}
			return 0
		}
		if jw >= defaultFuzzyThreshold {
			return jw
		}
		return 0
	}
	return &Phonetic{newPairwise(s, encode, compare)}
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes, produced for words without consonants, are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

func bestJWScore(in, ref phoneticDoc) float64 {
	score := matchr.JaroWinkler(in.full, ref.full, false)

	if len(in.tokens) > 1 || len(ref.tokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(in.tokens, ""), strings.Join(ref.tokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range in.tokens {
		for _, rt := range ref.tokens {
			if s := matchr.JaroWinkler(it, rt, false); s > score {
				score = s
			}
		}
	}
	return score
}
