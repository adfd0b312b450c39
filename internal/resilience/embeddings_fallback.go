package resilience

import (
	"context"

	"github.com/MrWong99/dialogic/pkg/provider/embeddings"
)

// EmbeddingsFallback is an [embeddings.Provider] that fails over between
// embedding services. Every member must produce vectors of the primary's
// dimension, since word vectors from different members are compared with
// each other.
type EmbeddingsFallback struct {
	group *Fallback[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback returns a provider preferring primary.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{group: NewFallback(primaryName, primary, cfg)}
}

// AddFallback registers another service, tried after those added before.
func (f *EmbeddingsFallback) AddFallback(name string, p embeddings.Provider) { f.group.Add(name, p) }

// Embed implements [embeddings.Provider].
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return Try(ctx, f.group, func(ctx context.Context, p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch implements [embeddings.Provider].
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Try(ctx, f.group, func(ctx context.Context, p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the dimension of the primary.
func (f *EmbeddingsFallback) Dimensions() int { return f.group.Primary().Dimensions() }

// ModelID returns the model of the primary.
func (f *EmbeddingsFallback) ModelID() string { return f.group.Primary().ModelID() }
