// Package vectors provides word-vector tables for the embedding-based
// matchers.
//
// A [Table] maps a normalized word to a dense vector. [Map] is the in-memory
// implementation; tables can be read from word2vec text files with [Load],
// computed through an embeddings provider with [Embed] or [ProviderTable],
// or persisted in PostgreSQL with the pgvec subpackage.
package vectors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table looks up word vectors. Implementations must be safe for concurrent
// use once constructed.
type Table interface {
	// Lookup returns the vector for word and whether the word is in the
	// vocabulary. The returned slice must not be modified by the caller.
	Lookup(word string) ([]float32, bool)
}

// Map is a static in-memory [Table].
type Map map[string][]float32

var _ Table = Map(nil)

// Lookup implements [Table].
func (m Map) Lookup(word string) ([]float32, bool) {
	v, ok := m[word]
	return v, ok
}

// Dimensions returns the length of the vectors in m, or 0 for an empty map.
// All vectors in a Map are expected to share one length.
func (m Map) Dimensions() int {
	for _, v := range m {
		return len(v)
	}
	return 0
}

// Load reads a table in the word2vec text format from path.
func Load(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectors: open %q: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses the word2vec text format: one "word v1 v2 ... vn" entry per
// line. An optional leading "count dims" header line is skipped. Every
// vector must have the same length.
func Read(r io.Reader) (Map, error) {
	m := make(Map)
	dims := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				continue
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("vectors: line %d: word without vector", line)
		}
		vec := make([]float32, len(fields)-1)
		for i, s := range fields[1:] {
			f, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("vectors: line %d: %w", line, err)
			}
			vec[i] = float32(f)
		}
		if dims == 0 {
			dims = len(vec)
		} else if len(vec) != dims {
			return nil, fmt.Errorf("vectors: line %d: got %d dimensions, want %d", line, len(vec), dims)
		}
		m[fields[0]] = vec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vectors: read: %w", err)
	}
	return m, nil
}

// Write serializes m in the word2vec text format with a header line.
// Words are written in unspecified order.
func Write(w io.Writer, m Map) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(m), m.Dimensions())
	for word, vec := range m {
		bw.WriteString(word)
		for _, x := range vec {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("vectors: write: %w", err)
	}
	return nil
}
