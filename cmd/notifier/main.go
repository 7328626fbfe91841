package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/flocknet/flockmind/internal/cache"
	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/notify"
	"github.com/flocknet/flockmind/pkg/config"
	"github.com/flocknet/flockmind/pkg/logging"
	"github.com/flocknet/flockmind/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Flockmind Notifier")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// The notifier drains the shared redis task queue, so Redis is
	// required here even though the API server treats it as optional.
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisCache.Client() == nil {
		logger.Fatal("Notifier requires FLOCK_REDIS_URL to be set")
	}
	defer redisCache.Close()

	repo := db.NewRepository(database.DB)
	queue := notify.NewRedisQueue(redisCache.Client())

	// The consume context stops pulling new tasks on shutdown; deliveries
	// already enqueued keep their retry budget until Stop drains them.
	consumeCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := notify.NewDispatcher(repo, notify.DispatcherOptions{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		MaxAttempts: cfg.Notifier.MaxAttempts,
		RetryBase:   cfg.Notifier.RetryBase,
	}, logging.WithComponent("dispatcher"))
	dispatcher.Start(context.Background())

	go dispatcher.Consume(consumeCtx, queue)

	logger.Info("Notifier started",
		zap.Int("workers", cfg.Notifier.Workers),
		zap.Int("max_attempts", cfg.Notifier.MaxAttempts))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down notifier...")
	cancel()
	dispatcher.Stop()
	logger.Info("Notifier exited")
}
