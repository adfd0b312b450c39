package matcher

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a matcher from options.
type Factory func(opts ...Option) (Matcher, error)

// Registry maps matcher names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the matcher registered as name.
func (r *Registry) New(name string, opts ...Option) (Matcher, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatcher, name)
	}
	return f(opts...)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds a factory to the process-wide registry. Call it from init
// functions only; the registry is treated as read-only once serving starts.
func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

// New builds a matcher from the process-wide registry.
func New(name string, opts ...Option) (Matcher, error) { return defaultRegistry.New(name, opts...) }

// Names lists the matchers of the process-wide registry.
func Names() []string { return defaultRegistry.Names() }

func init() {
	Register("exact", func(opts ...Option) (Matcher, error) { return NewExact(opts...), nil })
	Register("jaccard", func(opts ...Option) (Matcher, error) { return NewJaccard(opts...), nil })
	Register("levenshtein", func(opts ...Option) (Matcher, error) {
		return NewTextDistance(append(opts, WithMetric("levenshtein"), WithByWords(false))...)
	})
	Register("cosine", func(opts ...Option) (Matcher, error) {
		return NewTextDistance(append(opts, WithMetric("cosine"), WithByWords(true))...)
	})
	Register("jaro_winkler", func(opts ...Option) (Matcher, error) {
		return NewTextDistance(append(opts, WithMetric("jaro_winkler"), WithByWords(false))...)
	})
	Register("tf-idf", func(opts ...Option) (Matcher, error) { return NewTFIDF(opts...), nil })
	Register("regex", func(opts ...Option) (Matcher, error) { return NewRegex(opts...), nil })
	Register("phonetic", func(opts ...Option) (Matcher, error) { return NewPhonetic(opts...), nil })
	Register("w2v", func(opts ...Option) (Matcher, error) { return NewW2V(opts...) })
	Register("wmd", func(opts ...Option) (Matcher, error) {
		return NewWMD(append([]Option{WithSolver(MinCostFlowSolver{})}, opts...)...)
	})
	Register("model", func(opts ...Option) (Matcher, error) { return NewModelBased(opts...) })
	Register("simple_text", func(opts ...Option) (Matcher, error) {
		// Members keep their defaults; threshold and weights apply to the ensemble.
		lev, err := NewTextDistance(WithMetric("levenshtein"), WithByWords(false))
		if err != nil {
			return nil, err
		}
		cos, err := NewTextDistance(WithMetric("cosine"), WithByWords(true))
		if err != nil {
			return nil, err
		}
		return NewWeightedAverage([]Matcher{lev, cos}, append([]Option{WithWeights(0.5, 0.5)}, opts...)...)
	})
}
