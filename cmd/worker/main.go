package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/mindmate-hq/routellm/internal/db"
	"github.com/mindmate-hq/routellm/internal/logging"
	routenats "github.com/mindmate-hq/routellm/internal/nats"
	"github.com/mindmate-hq/routellm/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logging
	logCloser := logging.Setup(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		Production: cfg.IsProduction(),
	})
	defer logCloser.Close()

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required for the usage ledger")
	}
	if cfg.NATSURL == "" {
		log.Fatal().Msg("NATS_URL is required for the usage ledger")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("worker pool is shutting down...")
		cancel()
	}()

	// Connect to database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	store := db.NewStore(database)
	log.Info().Msg("connected to database")

	// Connect to NATS
	natsClient, err := routenats.NewClient(cfg.NATSURL, "routellm-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer natsClient.Close()
	log.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")

	if err := natsClient.SetupStreams(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to setup NATS streams")
	}

	consumer, err := natsClient.CreateConsumer(ctx, routenats.StreamUsage, routenats.ConsumerLedger, routenats.SubjectUsageAll)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger consumer")
	}

	// Create worker pool
	count := cfg.LedgerWorkers
	if count <= 0 {
		count = 1
	}
	workers := make([]worker.Worker, 0, count)
	for i := 0; i < count; i++ {
		workers = append(workers, worker.NewLedgerWorker(worker.LedgerWorkerConfig{
			WorkerID: fmt.Sprintf("ledger-%d", i+1),
			Consumer: consumer,
			Store:    store,
		}))
	}
	pool := worker.NewPool(workers...)

	log.Info().Int("workers", pool.Size()).Msg("starting worker pool")
	if err := pool.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker pool error")
	}

	log.Info().Msg("worker pool stopped")
}
