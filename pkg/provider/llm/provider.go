// Package llm defines the Provider interface for Large Language Model
// backends.
//
// Dialogic uses language models as zero-shot classifiers behind the
// model-based matcher, so the contract is limited to single-shot
// completions. Implementors must be safe for concurrent use.
package llm

import "context"

// Message is one entry of a conversation sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text of the message.
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to answer.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is prepended as a "system" message when non-empty.
	SystemPrompt string

	// Messages is the ordered conversation.
	Messages []Message

	// Temperature controls randomness in [0, 2]. Zero requests the provider
	// default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns promptly with an error when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the model identifier, for logging.
	ModelID() string
}
