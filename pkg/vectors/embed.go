package vectors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/dialogic/pkg/provider/embeddings"
)

const (
	defaultBatchSize   = 64
	defaultConcurrency = 4
	defaultLookupWait  = 3 * time.Second
)

// Embed computes vectors for words through p, splitting the vocabulary into
// batches of batchSize that are embedded concurrently. Duplicate and empty
// words are skipped. A non-positive batchSize selects a default.
func Embed(ctx context.Context, p embeddings.Provider, words []string, batchSize int) (Map, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	seen := make(map[string]struct{}, len(words))
	uniq := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		uniq = append(uniq, w)
	}

	var (
		mu  sync.Mutex
		out = make(Map, len(uniq))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for start := 0; start < len(uniq); start += batchSize {
		batch := uniq[start:min(start+batchSize, len(uniq))]
		g.Go(func() error {
			vecs, err := p.EmbedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("vectors: embed batch: %w", err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("vectors: embed batch: got %d vectors for %d words", len(vecs), len(batch))
			}
			mu.Lock()
			defer mu.Unlock()
			for i, w := range batch {
				out[w] = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ProviderTable is a [Table] that embeds unknown words on demand through an
// embeddings provider and caches the results. Concurrent lookups of the same
// word share a single provider call.
type ProviderTable struct {
	provider embeddings.Provider
	timeout  time.Duration

	mu    sync.RWMutex
	cache Map
	group singleflight.Group
}

var _ Table = (*ProviderTable)(nil)

// ProviderTableOption configures a [ProviderTable].
type ProviderTableOption func(*ProviderTable)

// WithLookupTimeout bounds every on-demand embedding call. Default: 3s.
func WithLookupTimeout(d time.Duration) ProviderTableOption {
	return func(t *ProviderTable) {
		t.timeout = d
	}
}

// WithSeed preloads the cache with already known vectors.
func WithSeed(m Map) ProviderTableOption {
	return func(t *ProviderTable) {
		for w, v := range m {
			t.cache[w] = v
		}
	}
}

// NewProviderTable returns a table backed by p.
func NewProviderTable(p embeddings.Provider, opts ...ProviderTableOption) *ProviderTable {
	t := &ProviderTable{
		provider: p,
		timeout:  defaultLookupWait,
		cache:    make(Map),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Prefetch embeds words in batches and stores them in the cache.
func (t *ProviderTable) Prefetch(ctx context.Context, words []string) error {
	m, err := Embed(ctx, t.provider, words, defaultBatchSize)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for w, v := range m {
		t.cache[w] = v
	}
	return nil
}

// Lookup implements [Table]. Provider failures are logged and reported as
// out-of-vocabulary so that matching degrades instead of failing the turn.
func (t *ProviderTable) Lookup(word string) ([]float32, bool) {
	if word == "" {
		return nil, false
	}
	t.mu.RLock()
	v, ok := t.cache[word]
	t.mu.RUnlock()
	if ok {
		return v, true
	}

	res, err, _ := t.group.Do(word, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		vec, err := t.provider.Embed(ctx, word)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.cache[word] = vec
		t.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		slog.Warn("vectors: embed word failed", "word", word, "model", t.provider.ModelID(), "err", err)
		return nil, false
	}
	vec := res.([]float32)
	return vec, len(vec) > 0
}

// Snapshot returns a copy of every cached vector.
func (t *ProviderTable) Snapshot() Map {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Map, len(t.cache))
	for w, v := range t.cache {
		out[w] = v
	}
	return out
}
