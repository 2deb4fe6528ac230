package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/retrieval-insight-engine/internal/adapters/http"
	"github.com/kirillkom/retrieval-insight-engine/internal/bootstrap"
	"github.com/kirillkom/retrieval-insight-engine/internal/config"
	"github.com/kirillkom/retrieval-insight-engine/internal/observability/logging"
	"github.com/kirillkom/retrieval-insight-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("insight-engine-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("insight-engine-api")
	routerCfg := httpadapter.RouterConfig{
		RateLimitRPS:          cfg.APIRateLimitRPS,
		RateLimitBurst:        cfg.APIRateLimitBurst,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		BackpressureTimeout:   cfg.BackpressureTimeout(),
		DefaultMinSimilarity:  cfg.SimilarityThreshold,
	}
	router := httpadapter.NewRouter(app.RetrieveUC, app.InsightsUC, app.Identity, httpMetrics, routerCfg, logger)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	router.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
