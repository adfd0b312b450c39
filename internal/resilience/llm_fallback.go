package resilience

import (
	"context"

	"github.com/MrWong99/dialogic/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over between language
// models. Intent classification through a model keeps working while the
// primary is down.
type LLMFallback struct {
	group *Fallback[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns a provider preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallback(primaryName, primary, cfg)}
}

// AddFallback registers another model, tried after those added before.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.group.Add(name, p) }

// Complete implements [llm.Provider].
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Try(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// ModelID returns the model of the primary.
func (f *LLMFallback) ModelID() string { return f.group.Primary().ModelID() }
