package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-engine/internal/dispatch"
	"github.com/sells-group/leadgen-engine/internal/genchain"
	"github.com/sells-group/leadgen-engine/internal/orchestrator"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/internal/task"
	anthropicpkg "github.com/sells-group/leadgen-engine/pkg/anthropic"
	"github.com/sells-group/leadgen-engine/pkg/gemini"
	"github.com/sells-group/leadgen-engine/pkg/jina"
	"github.com/sells-group/leadgen-engine/pkg/perplexity"
	"github.com/sells-group/leadgen-engine/pkg/places"
)

// engine bundles the wired store and orchestrator for a command.
type engine struct {
	store  store.Store
	orch   *orchestrator.Orchestrator
	gemini gemini.Client
}

func (e *engine) Close() {
	if e.gemini != nil {
		_ = e.gemini.Close()
	}
	_ = e.store.Close()
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEngine wires clients, generation chain, task registry and
// orchestrator from config.
func initEngine(ctx context.Context) (*engine, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.Key, gemini.WithModel(cfg.Gemini.Model))
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init gemini client")
	}
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model))
	placesClient := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))

	providers := []genchain.Provider{
		genchain.NewGeminiProvider(geminiClient, cfg.Chain.FastTimeout()),
		genchain.NewClaudeProvider(anthropicClient, cfg.Anthropic.Model, cfg.Chain.MaxTokens, cfg.Chain.QualityTimeout()),
		genchain.NewPerplexityProvider(perplexityClient, cfg.Chain.AltTimeout()),
	}

	// One limiter caps provider and tool calls across every task.
	limiter := genchain.NewLimiter(cfg.Chain)
	chainOpts := []genchain.Option{genchain.WithLimiter(limiter)}
	if cfg.Chain.CacheEnabled {
		chainOpts = append(chainOpts, genchain.WithCache(genchain.NewCache(cfg.Chain.CacheTTL())))
	}
	chain := genchain.New(cfg.Chain, providers, chainOpts...)

	execs := task.Registry(task.Deps{
		Store:      st,
		Chain:      chain,
		Places:     placesClient,
		Jina:       jinaClient,
		Perplexity: perplexityClient,
		Limiter:    limiter,
		Discovery:  cfg.Discovery,
		Research:   cfg.Research,
	})

	orch := orchestrator.New(st, execs, dispatch.New(cfg.Dispatch), cfg.Orchestrator)

	return &engine{store: st, orch: orch, gemini: geminiClient}, nil
}
