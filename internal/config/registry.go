package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/dialogic/pkg/provider/embeddings"
	"github.com/MrWong99/dialogic/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned when no factory is registered under
// the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Capability is a remote service that some matchers need before they can be
// built.
type Capability string

const (
	// Classifier scores intents with a language model (the model matcher).
	Classifier Capability = "llm"

	// WordVectors embeds words on demand (the w2v and wmd matchers).
	WordVectors Capability = "embeddings"
)

// MatcherCapability reports the capability the named matcher depends on.
// Matchers that work offline report false.
func MatcherCapability(matcher string) (Capability, bool) {
	switch matcher {
	case "model":
		return Classifier, true
	case "w2v", "wmd":
		return WordVectors, true
	}
	return "", false
}

// factories is the provider table of one capability.
type factories[P any] struct {
	capability Capability

	mu     sync.RWMutex
	byName map[string]func(ProviderEntry) (P, error)
}

func newFactories[P any](c Capability) *factories[P] {
	return &factories[P]{capability: c, byName: make(map[string]func(ProviderEntry) (P, error))}
}

func (f *factories[P]) register(name string, fn func(ProviderEntry) (P, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[name] = fn
}

func (f *factories[P]) create(entry ProviderEntry) (P, error) {
	f.mu.RLock()
	fn, ok := f.byName[entry.Name]
	f.mu.RUnlock()
	if !ok {
		var zero P
		return zero, fmt.Errorf("%w: %s/%q (known: %s)", ErrProviderNotRegistered,
			f.capability, entry.Name, strings.Join(f.names(), ", "))
	}
	return fn(entry)
}

func (f *factories[P]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.byName))
}

// Registry maps provider names to constructors, one table per [Capability].
// It is safe for concurrent use.
type Registry struct {
	classifiers *factories[llm.Provider]
	vectors     *factories[embeddings.Provider]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classifiers: newFactories[llm.Provider](Classifier),
		vectors:     newFactories[embeddings.Provider](WordVectors),
	}
}

// RegisterLLM registers a language model backing the [Classifier]
// capability. A later registration under the same name wins.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.classifiers.register(name, factory)
}

// RegisterEmbeddings registers an embeddings backend for [WordVectors].
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.vectors.register(name, factory)
}

// CreateLLM builds the language model named by entry.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return r.classifiers.create(entry)
}

// CreateEmbeddings builds the embeddings backend named by entry.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	return r.vectors.create(entry)
}

// Names returns the sorted provider names registered for c.
func (r *Registry) Names(c Capability) []string {
	switch c {
	case Classifier:
		return r.classifiers.names()
	case WordVectors:
		return r.vectors.names()
	}
	return nil
}
