// Package mock provides a test double for the embeddings.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    EmbedFunc: func(text string) ([]float32, error) {
//	        return []float32{float32(len(text)), 1}, nil
//	    },
//	    DimensionsValue: 2,
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/dialogic/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider. EmbedBatch is
// served by EmbedFunc (or EmbedResult) one text at a time unless
// EmbedBatchResult is set.
type Provider struct {
	mu sync.Mutex

	// EmbedFunc, if set, computes the vector of a text.
	EmbedFunc func(text string) ([]float32, error)

	// EmbedResult is returned for every text when EmbedFunc is nil.
	EmbedResult []float32

	// EmbedErr, if non-nil, fails every Embed and EmbedBatch call.
	EmbedErr error

	// EmbedBatchResult, if non-nil, is returned by EmbedBatch as is.
	EmbedBatchResult [][]float32

	DimensionsValue int
	ModelIDValue    string

	// Texts records every embedded text in call order, batches flattened.
	Texts []string

	// BatchSizes records the length of every EmbedBatch call.
	BatchSizes []int
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	fn, res, err := p.EmbedFunc, p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(text)
	}
	return res, nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.BatchSizes = append(p.BatchSizes, len(texts))
	batch, err := p.EmbedBatchResult, p.EmbedErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if batch != nil {
		return batch, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// Embedded returns a copy of the recorded texts.
func (p *Provider) Embedded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Texts...)
}
