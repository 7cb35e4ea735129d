// ABOUTME: Builds the full gateway object graph from configuration
// ABOUTME: Store, rates, router, pipeline, registry, then the HTTP server

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agentgaia/gaia-gateway/internal/chat"
	"github.com/agentgaia/gaia-gateway/internal/config"
	"github.com/agentgaia/gaia-gateway/internal/conversation"
	"github.com/agentgaia/gaia-gateway/internal/llm"
	"github.com/agentgaia/gaia-gateway/internal/rag"
	"github.com/agentgaia/gaia-gateway/internal/store"
	"github.com/agentgaia/gaia-gateway/internal/usage"
	"github.com/agentgaia/gaia-gateway/internal/websearch"
)

// NewFromConfig wires the whole gateway from its configuration and
// returns the server plus a cleanup function releasing the store and
// rate cache.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	if err := seedModelCosts(ctx, sqlStore, cfg); err != nil {
		sqlStore.Close()
		return nil, nil, err
	}

	rates := usage.NewStoreRates(sqlStore, fallbackRates(cfg), logger)
	tracker := usage.NewTracker(rates, logger)

	router, err := buildRouter(cfg, logger)
	if err != nil {
		sqlStore.Close()
		rates.Close()
		return nil, nil, err
	}

	var search websearch.Service
	if cfg.WebSearch.Enabled {
		search = websearch.NewDuckDuckGo(cfg.WebSearch.MaxResults, cfg.WebSearch.Region, logger)
	}

	ragClient := rag.NewClient(rag.Config{
		Enabled:        cfg.RAG.Enabled,
		SearchURL:      cfg.RAG.SearchURL,
		CollectionName: cfg.RAG.CollectionName,
		SearchLimit:    cfg.RAG.SearchLimit,
		ScoreThreshold: cfg.RAG.ScoreThreshold,
	}, logger)

	pipeline := chat.NewPipeline(chat.PipelineConfig{
		Router:       router,
		Assembler:    chat.NewAssembler(chat.NewInMemoryAttachments(), logger),
		Tracker:      tracker,
		Log:          conversation.NewLog(cfg.LLM.HistoryCap),
		Repo:         sqlStore,
		RAG:          ragClient,
		Search:       search,
		SearchMax:    cfg.WebSearch.MaxResults,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Logger:       logger,
	})

	registry := chat.NewRegistry(pipeline, logger)

	srv := New(Config{
		HTTPAddr: cfg.Server.HTTPAddr,
		Registry: registry,
		Pipeline: pipeline,
		Router:   router,
		Repo:     sqlStore,
		Chain:    cfg.LLM.BackupChain,
		Models:   ProvidersFromConfig(cfg),
		Logger:   logger,
	})

	cleanup := func() {
		rates.Close()
		if err := sqlStore.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}
	return srv, cleanup, nil
}

// buildRouter registers one streaming client per configured provider.
func buildRouter(cfg *config.Config, logger *slog.Logger) (*llm.Router, error) {
	router := llm.NewRouter(cfg.LLM.BackupChain, logger)

	for _, p := range cfg.LLM.Providers {
		apiKey := ""
		if p.APIKeyEnv != "" {
			apiKey = os.Getenv(p.APIKeyEnv)
		}
		if apiKey == "" {
			logger.Warn("provider has no API key, registering anyway",
				"provider", p.Name,
				"api_key_env", p.APIKeyEnv)
		}

		client, err := clientFor(p.Name, apiKey, p.BaseURL, logger)
		if err != nil {
			return nil, err
		}

		router.Register(llm.ProviderConfig{
			Name:            p.Name,
			Model:           p.Model,
			Temperature:     p.Temperature,
			MaxTokens:       p.MaxTokens,
			CostPer1KInput:  p.InputCostPerMTok / 1000,
			CostPer1KOutput: p.OutputCostPerMTok / 1000,
		}, client)
	}
	return router, nil
}

// clientFor maps a configured provider name to its streaming client.
func clientFor(name, apiKey, baseURL string, logger *slog.Logger) (llm.Client, error) {
	switch name {
	case "claude", "anthropic":
		return llm.NewAnthropicClient(apiKey, baseURL, logger), nil
	case "openai", "gpt":
		return llm.NewOpenAIClient(apiKey, baseURL, logger), nil
	case "gemini", "google":
		return llm.NewGeminiClient(apiKey, baseURL, logger), nil
	default:
		return nil, fmt.Errorf("no client implementation for provider %q", name)
	}
}

// seedModelCosts writes configured rates into the rate table so the
// usage tracker and any external readers see one source of truth.
func seedModelCosts(ctx context.Context, s store.Store, cfg *config.Config) error {
	for _, p := range cfg.LLM.Providers {
		if p.InputCostPerMTok == 0 && p.OutputCostPerMTok == 0 {
			continue
		}
		err := s.UpsertModelCost(ctx, &store.ModelCost{
			Model:             p.Model,
			Provider:          p.Name,
			InputCostPerMTok:  p.InputCostPerMTok,
			OutputCostPerMTok: p.OutputCostPerMTok,
			Active:            true,
		})
		if err != nil {
			return fmt.Errorf("seeding model cost for %s: %w", p.Model, err)
		}
	}
	return nil
}

// fallbackRates builds the config-level rate map consulted when the
// rate table misses.
func fallbackRates(cfg *config.Config) map[string]usage.Rate {
	rates := make(map[string]usage.Rate, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.InputCostPerMTok == 0 && p.OutputCostPerMTok == 0 {
			continue
		}
		rates[p.Model] = usage.Rate{
			InputPer1K:  p.InputCostPerMTok / 1000,
			OutputPer1K: p.OutputCostPerMTok / 1000,
		}
	}
	return rates
}
