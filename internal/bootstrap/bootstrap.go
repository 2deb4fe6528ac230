package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/retrieval-insight-engine/internal/config"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/usecase"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/identity/httpverify"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/search/neo4j"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/vector/qdrant"
)

// App wires every adapter behind the two inbound use cases, shared by the
// HTTP API (cmd/api) and the MCP server (cmd/mcpserver).
type App struct {
	Config config.Config
	Logger *slog.Logger

	RetrieveUC ports.RetrievalService
	InsightsUC ports.InsightService
	Identity   ports.IdentityVerifier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	cache := postgres.New(db)
	if err := cache.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}

	neo4jDriver, err := neo4j.NewDriver(cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword)
	if err != nil {
		return nil, fmt.Errorf("open neo4j driver: %w", err)
	}
	lexical := neo4j.New(neo4jDriver, cfg.Neo4jDatabase, cfg.Neo4jFulltextIndex, executor)

	dense := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)

	history, err := nats.NewRecorder(cfg.NATSURL, cfg.NATSHistorySubject, executor)
	if err != nil {
		logger.Warn("history_recorder_unavailable", "error", err)
		history = nil
	}

	identity := httpverify.New(cfg.IdentityVerifyURL, executor)

	retrieveUC := &usecase.RetrieveUseCase{
		Embedder:            ollamaClient,
		Dense:               dense,
		Lexical:             lexical,
		RRFK:                cfg.RRFK,
		Logger:              logger,
		DefaultLimit:        cfg.MaxChunksPerDocument,
		MinResultsThreshold: cfg.MinResultsThreshold,
	}

	insightsUC := &usecase.InsightsUseCase{
		LLM:        ollamaClient,
		Cache:      cache,
		Logger:     logger,
		Model:      cfg.OllamaChatModel,
		LLMTimeout: cfg.LLMTimeout(),
		CacheTTL:   cfg.CacheTTL(),
	}
	if history != nil {
		insightsUC.History = history
	}

	closeFn := func() {
		_ = db.Close()
		_ = neo4jDriver.Close(ctx)
		if history != nil {
			history.Close()
		}
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		RetrieveUC: retrieveUC,
		InsightsUC: insightsUC,
		Identity:   identity,
		closeFn:    closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
