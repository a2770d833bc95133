// Command server runs the transaction relay service: the gin HTTP API,
// the worker pool delivering to the posting service, and the
// reconciliation sweep, wired through a shared lifecycle.Registry.
// Grounded on the teacher's cmd/coordinator/main.go: flag-or-env config
// path, signal.Notify-driven graceful shutdown with a bounded timeout.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/moulimds/transaction-service/internal/apiserver"
	"github.com/moulimds/transaction-service/internal/config"
	"github.com/moulimds/transaction-service/internal/lifecycle"
	"github.com/moulimds/transaction-service/internal/logging"
	"github.com/moulimds/transaction-service/internal/middleware"
	"github.com/moulimds/transaction-service/internal/posting"
	"github.com/moulimds/transaction-service/internal/reconcile"
	"github.com/moulimds/transaction-service/internal/store"
	"github.com/moulimds/transaction-service/internal/submission"
	"github.com/moulimds/transaction-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to an optional YAML config overlay")
	flag.Parse()

	logger := logging.New(os.Stdout, parseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	redisStore, err := store.NewRedisStore(cfg.StoreURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("build store")
	}

	postingClient := posting.NewHTTPClient(cfg.PostingServiceURL)

	submissionSvc := submission.New(redisStore, cfg.DedupTTL(), cfg.StatusTTL(), int64(cfg.QueueMaxSize))

	workerPool := worker.New(redisStore, postingClient, logger, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay(),
		StatusTTL:   cfg.StatusTTL(),
	})

	sweeper := reconcile.New(redisStore, logger, cfg.ReconcileStaleAfter(), cfg.ReconcileInterval())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	stopRateLimitCleanup := rateLimiter.StartCleanup(time.Hour)
	defer stopRateLimitCleanup()

	httpServer := apiserver.New(apiserver.Deps{
		Submission:      submissionSvc,
		Store:           redisStore,
		Logger:          logger,
		RateLimiter:     rateLimiter,
		Workers:         workerPool,
		ResponseTimeout: cfg.ResponseTimeout(),
		Addr:            cfg.HTTPAddr,
	})

	registry := lifecycle.NewRegistry()
	registry.Register("store", redisStore)
	registry.Register("worker_pool", workerPool)
	registry.Register("reconcile_sweep", sweeper)
	registry.Register("http_server", httpServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.StartAll(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start components")
	}
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("transaction relay service started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, err := range registry.StopAll(shutdownCtx) {
		logger.Error().Err(err).Msg("component shutdown error")
	}
	logger.Info().Msg("transaction relay service stopped")
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
