// Package textnorm normalizes user utterances before they are matched
// against intents.
//
// [Normalize] is the fast path used everywhere in the dialog core: it
// lowercases, folds Latin diacritics, keeps only ASCII letters, Cyrillic
// letters, digits and hyphens, and collapses whitespace. A [Normalizer]
// additionally maps every token to its dictionary form through a
// [Lemmatizer], memoizing per-word lookups in a bounded LRU cache.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize is the number of lemmatized words a [Normalizer] keeps.
const DefaultCacheSize = 16384

var (
	outsideAlphabet = regexp.MustCompile(`[^a-zа-я0-9-]+`)
	yoReplacer      = strings.NewReplacer("ё", "е")
)

// fold strips combining marks from non-Cyrillic letters (é → e). The text
// is decomposed as a whole, so marks produced by lowercasing (İ → i̇) are
// dropped too. Marks on Cyrillic letters are kept, so й is not reduced to и.
func fold(text string) string {
	if isASCII(text) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	cyrillic := false
	for _, r := range norm.NFD.String(text) {
		if unicode.Is(unicode.Mn, r) {
			if cyrillic {
				b.WriteRune(r)
			}
			continue
		}
		cyrillic = unicode.Is(unicode.Cyrillic, r)
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Normalize returns the canonical form of text. It is deterministic and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = fold(strings.ToLower(text))
	text = yoReplacer.Replace(text)
	text = outsideAlphabet.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// Lemmatizer maps a single normalized word to its dictionary form.
// Implementations must be safe for concurrent use.
type Lemmatizer interface {
	Lemmatize(word string) string
}

// LemmatizerFunc adapts an ordinary function to the [Lemmatizer] interface.
type LemmatizerFunc func(word string) string

// Lemmatize implements [Lemmatizer].
func (f LemmatizerFunc) Lemmatize(word string) string { return f(word) }

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithLemmatizer enables lemmatization through l.
func WithLemmatizer(l Lemmatizer) Option {
	return func(n *Normalizer) {
		n.lemmatizer = l
	}
}

// WithCacheSize sets the capacity of the per-word lemma cache.
// Non-positive values fall back to [DefaultCacheSize].
func WithCacheSize(size int) Option {
	return func(n *Normalizer) {
		n.cacheSize = size
	}
}

// Normalizer applies [Normalize] and optional lemmatization.
// It is safe for concurrent use.
type Normalizer struct {
	lemmatizer Lemmatizer
	cacheSize  int
	cache      *lru.Cache[string, string]
}

// New returns a Normalizer configured with opts. Without a lemmatizer the
// per-word step is a no-op and New never allocates a cache.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{cacheSize: DefaultCacheSize}
	for _, o := range opts {
		o(n)
	}
	if n.cacheSize <= 0 {
		n.cacheSize = DefaultCacheSize
	}
	if n.lemmatizer != nil {
		// lru.New only fails for non-positive sizes, which are excluded above.
		n.cache, _ = lru.New[string, string](n.cacheSize)
	}
	return n
}

// Lemmatizes reports whether the normalizer maps words to lemmas.
func (n *Normalizer) Lemmatizes() bool {
	return n != nil && n.lemmatizer != nil
}

// Normalize normalizes text and, when a lemmatizer is configured, replaces
// every token with its lemma. A nil *Normalizer behaves like [Normalize].
func (n *Normalizer) Normalize(text string) string {
	text = Normalize(text)
	if !n.Lemmatizes() || text == "" {
		return text
	}
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = n.lemma(w)
	}
	// Lemmas may reintroduce characters such as ё; renormalize the result.
	return Normalize(strings.Join(words, " "))
}

func (n *Normalizer) lemma(word string) string {
	if l, ok := n.cache.Get(word); ok {
		return l
	}
	l := n.lemmatizer.Lemmatize(word)
	if l == "" {
		l = word
	}
	n.cache.Add(word, l)
	return l
}
