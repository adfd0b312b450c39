package textnorm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DictLemmatizer is a [Lemmatizer] backed by a static word → lemma map.
// Words missing from the map are returned unchanged.
type DictLemmatizer struct {
	lemmas map[string]string
}

var _ Lemmatizer = (*DictLemmatizer)(nil)

// NewDictLemmatizer builds a lemmatizer from lemmas. Keys and values are
// normalized with [Normalize] so that lookups match normalized tokens.
func NewDictLemmatizer(lemmas map[string]string) *DictLemmatizer {
	d := &DictLemmatizer{lemmas: make(map[string]string, len(lemmas))}
	for w, l := range lemmas {
		w, l = Normalize(w), Normalize(l)
		if w == "" || l == "" {
			continue
		}
		d.lemmas[w] = l
	}
	return d
}

// Lemmatize implements [Lemmatizer].
func (d *DictLemmatizer) Lemmatize(word string) string {
	if l, ok := d.lemmas[word]; ok {
		return l
	}
	return word
}

// Len returns the number of dictionary entries.
func (d *DictLemmatizer) Len() int { return len(d.lemmas) }

// LoadDictLemmatizer reads a lemma dictionary from path. Files ending in
// .yaml or .yml hold a word: lemma mapping; anything else is parsed as
// tab-separated "word<TAB>lemma" lines, with # starting a comment.
func LoadDictLemmatizer(path string) (*DictLemmatizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("textnorm: open %q: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		var lemmas map[string]string
		if err := yaml.NewDecoder(f).Decode(&lemmas); err != nil && err != io.EOF {
			return nil, fmt.Errorf("textnorm: decode %q: %w", path, err)
		}
		return NewDictLemmatizer(lemmas), nil
	}
	return ReadTSVLemmatizer(f)
}

// ReadTSVLemmatizer parses "word<TAB>lemma" lines from r.
func ReadTSVLemmatizer(r io.Reader) (*DictLemmatizer, error) {
	lemmas := make(map[string]string)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, lemma, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("textnorm: line %d: expected word<TAB>lemma", line)
		}
		lemmas[word] = lemma
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("textnorm: read lemmas: %w", err)
	}
	return NewDictLemmatizer(lemmas), nil
}
