// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// Dialogic uses embeddings to build word-vector tables for the w2v and wmd
// matchers when no pre-trained vector file is available: every vocabulary
// word is embedded once and cached (see package vectors).
package embeddings

import "context"

// Provider maps text to dense vectors. All vectors of one Provider share the
// length reported by Dimensions.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the vector of a single text, passed through verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one backend call. The i-th result belongs to
	// texts[i]; on error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length, or 0 when it is not yet known.
	Dimensions() int

	// ModelID names the embedding model, e.g. "text-embedding-3-small".
	ModelID() string
}
