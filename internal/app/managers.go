package app

import (
	"context"
	"fmt"
	"maps"

	"github.com/MrWong99/dialogic/internal/config"
	"github.com/MrWong99/dialogic/internal/manager"
	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
	"github.com/MrWong99/dialogic/pkg/vectors"
	"github.com/MrWong99/dialogic/pkg/vectors/pgvec"
)

// Builder turns the managers section of a config into a manager cascade.
// It owns the word vector table shared by w2v and wmd matchers.
type Builder struct {
	providers *Providers
	metrics   *observe.Metrics
	vectors   vectors.Table
}

// NewBuilder loads the word vectors configured in cfg, if any. Vectors
// from a file or postgres seed an on-demand table when an embeddings
// provider is configured.
func NewBuilder(ctx context.Context, cfg *config.Config, providers *Providers, metrics *observe.Metrics) (*Builder, error) {
	if providers == nil {
		providers = &Providers{}
	}
	b := &Builder{providers: providers, metrics: metrics}

	vc := cfg.Providers.Vectors
	var seed vectors.Map
	switch {
	case vc.File != "":
		m, err := vectors.Load(vc.File)
		if err != nil {
			return nil, fmt.Errorf("app: load vectors: %w", err)
		}
		seed = m
	case vc.PostgresDSN != "":
		store, err := pgvec.NewStore(ctx, vc.PostgresDSN, vc.Table, vc.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("app: open vector store: %w", err)
		}
		defer store.Close()
		m, err := store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load vectors: %w", err)
		}
		seed = m
	}

	switch {
	case providers.Embeddings != nil:
		b.vectors = vectors.NewProviderTable(providers.Embeddings, vectors.WithSeed(seed))
	case seed != nil:
		b.vectors = seed
	}
	return b, nil
}

// nluSettings is the NLU section of a config with its files loaded.
type nluSettings struct {
	engine      matcher.Engine
	expressions matcher.Expressions
	normalizer  *textnorm.Normalizer
	heuristics  bool
}

func loadNLU(nc config.NLUConfig) (nluSettings, error) {
	engine, err := matcher.EngineByName(nc.Engine)
	if err != nil {
		return nluSettings{}, err
	}
	ns := nluSettings{engine: engine, heuristics: nc.Heuristics}
	if nc.ExpressionsFile != "" {
		ns.expressions, err = matcher.LoadExpressions(nc.ExpressionsFile)
		if err != nil {
			return nluSettings{}, err
		}
	}
	if nc.LemmasFile != "" {
		dict, err := textnorm.LoadDictLemmatizer(nc.LemmasFile)
		if err != nil {
			return nluSettings{}, err
		}
		// Shared by every manager of the cascade, so the lemma cache is too.
		ns.normalizer = textnorm.New(textnorm.WithLemmatizer(dict))
	}
	return ns, nil
}

// Build creates the cascade of managers declared in cfg. Definition files,
// including the lemma dictionary, are read on every call.
func (b *Builder) Build(cfg *config.Config) (manager.Manager, error) {
	ns, err := loadNLU(cfg.NLU)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	members := make([]manager.Named, 0, len(cfg.Managers.Cascade))
	for _, mc := range cfg.Managers.Cascade {
		m, err := b.buildOne(mc, ns)
		if err != nil {
			return nil, fmt.Errorf("app: manager %q: %w", mc.Name, err)
		}
		members = append(members, manager.Named{Name: mc.Name, Manager: m})
	}

	var opts []manager.CascadeOption
	if cfg.Managers.DefaultMessage != "" {
		opts = append(opts, manager.WithDefaultMessage(cfg.Managers.DefaultMessage))
	}
	return manager.NewCascade(members, opts...)
}

func (b *Builder) buildOne(mc config.ManagerConfig, ns nluSettings) (manager.Manager, error) {
	switch mc.Type {
	case config.ManagerGreetAndHelp:
		return &manager.GreetAndHelp{
			GreetingMessage: mc.Greeting,
			HelpMessage:     mc.Help,
			ExitMessage:     mc.Exit,
		}, nil

	case config.ManagerFAQ:
		entries, err := manager.LoadFAQ(mc.File)
		if err != nil {
			return nil, err
		}
		name := mc.Matcher
		if name == "" {
			name = manager.DefaultFAQMatcher
		}
		mopts, err := b.matcherOptions(name)
		if err != nil {
			return nil, err
		}
		if ns.normalizer != nil {
			mopts = append(mopts, matcher.WithNormalizer(ns.normalizer))
		}
		if mc.Threshold != nil {
			mopts = append(mopts, matcher.WithThreshold(*mc.Threshold))
		}
		m, err := matcher.New(name, mopts...)
		if err != nil {
			return nil, err
		}
		opts := []manager.FAQOption{manager.WithFAQMatcher(m)}
		if mc.Seed != nil {
			opts = append(opts, manager.WithFAQSeed(*mc.Seed))
		}
		return manager.NewFAQ(entries, opts...)

	case config.ManagerTurn:
		tc, err := manager.LoadTurnConfig(mc.File)
		if err != nil {
			return nil, err
		}
		if len(ns.expressions) > 0 {
			merged := maps.Clone(ns.expressions)
			maps.Copy(merged, tc.Expressions)
			tc.Expressions = merged
		}
		mopts, err := b.matcherOptions(tc.Matcher)
		if err != nil {
			return nil, err
		}
		opts := []manager.TurnOption{
			manager.WithTurnEngine(ns.engine),
			manager.WithTurnMatcherOptions(mopts...),
			manager.WithTurnHeuristics(ns.heuristics),
		}
		if ns.normalizer != nil {
			opts = append(opts, manager.WithTurnNormalizer(ns.normalizer))
		}
		if b.metrics != nil {
			opts = append(opts, manager.WithTurnMetrics(b.metrics))
		}
		if mc.Seed != nil {
			opts = append(opts, manager.WithTurnSeed(*mc.Seed))
		}
		return manager.NewTurnFromConfig(tc, opts...)
	}
	return nil, fmt.Errorf("unknown manager type %q", mc.Type)
}

// matcherOptions supplies the remote capabilities model-based matchers need.
func (b *Builder) matcherOptions(name string) ([]matcher.Option, error) {
	capability, ok := config.MatcherCapability(name)
	if !ok {
		return nil, nil
	}
	switch capability {
	case config.Classifier:
		if b.providers.LLM == nil {
			return nil, fmt.Errorf("matcher %q: %s %w", name, capability, errNoProvider)
		}
		return []matcher.Option{matcher.WithClassifier(matcher.NewLLMClassifier(b.providers.LLM))}, nil
	case config.WordVectors:
		if b.vectors == nil {
			return nil, fmt.Errorf("matcher %q: word vectors %w", name, errNoProvider)
		}
		return []matcher.Option{matcher.WithVectors(b.vectors)}, nil
	}
	return nil, nil
}
