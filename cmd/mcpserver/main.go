package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/retrieval-insight-engine/internal/adapters/mcp"
	"github.com/kirillkom/retrieval-insight-engine/internal/bootstrap"
	"github.com/kirillkom/retrieval-insight-engine/internal/config"
	"github.com/kirillkom/retrieval-insight-engine/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("insight-engine-mcpserver", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mcpServer := mcpadapter.New(app.RetrieveUC, app.InsightsUC, cfg.SimilarityThreshold, logger)

	logger.Info("mcp_server_starting")
	if err := mcpServer.Serve(ctx); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
