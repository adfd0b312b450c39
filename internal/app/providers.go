package app

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/dialogic/internal/config"
	"github.com/MrWong99/dialogic/internal/resilience"
	"github.com/MrWong99/dialogic/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/dialogic/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/dialogic/pkg/provider/embeddings/openai"
	"github.com/MrWong99/dialogic/pkg/provider/llm"
	"github.com/MrWong99/dialogic/pkg/provider/llm/anyllm"
)

// Providers holds the remote models used by model-based matchers. Nil means
// the provider is not configured.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	for _, providerName := range anyllm.Providers {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			// ollama is a local server; it uses BaseURL for the address, not an API key.
			if entry.APIKey != "" && providerName != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, ollamaembed.WithDimensions(n))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// BuildProviders instantiates the providers named in cfg using reg. A
// provider with fallbacks is wrapped so that failing backends are skipped
// behind a circuit breaker.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	fbCfg := resilience.FallbackConfig{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.LLM = p
		if len(cfg.Providers.LLMFallbacks) > 0 {
			fb := resilience.NewLLMFallback(p, entry.Name, fbCfg)
			for _, e := range cfg.Providers.LLMFallbacks {
				alt, err := reg.CreateLLM(e)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, alt)
			}
			ps.LLM = fb
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "fallbacks", len(cfg.Providers.LLMFallbacks))
	}

	if entry := cfg.Providers.Embeddings; entry.Name != "" {
		p, err := reg.CreateEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
		}
		ps.Embeddings = p
		if len(cfg.Providers.EmbeddingsFallbacks) > 0 {
			fb := resilience.NewEmbeddingsFallback(p, entry.Name, fbCfg)
			for _, e := range cfg.Providers.EmbeddingsFallbacks {
				alt, err := reg.CreateEmbeddings(e)
				if err != nil {
					return nil, fmt.Errorf("create embeddings fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, alt)
			}
			ps.Embeddings = fb
		}
		slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "fallbacks", len(cfg.Providers.EmbeddingsFallbacks))
	}

	if ps.LLM == nil && ps.Embeddings == nil {
		slog.Debug("no remote providers configured")
	}
	return ps, nil
}

// optInt extracts an integer from a provider Options map. YAML numbers
// decode as int; anything else yields 0.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

var errNoProvider = errors.New("app: provider not configured")
