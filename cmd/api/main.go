package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mindmate-hq/routellm/internal/api"
	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/mindmate-hq/routellm/internal/db"
	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/logging"
	routenats "github.com/mindmate-hq/routellm/internal/nats"
	"github.com/mindmate-hq/routellm/internal/routellm"
	"github.com/mindmate-hq/routellm/internal/settings"
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

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	adapters, err := llm.NewAdapters(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure providers")
	}

	checks := map[string]func(context.Context) error{}

	// Connect to database (required for postgres settings, optional otherwise)
	var store *db.Store
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			if cfg.Settings.Backend == config.SettingsPostgres {
				log.Fatal().Err(err).Msg("failed to connect to database")
			}
			log.Warn().Err(err).Msg("failed to connect to database, usage history disabled")
		} else {
			defer database.Close()
			if err := database.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate database")
			}
			store = db.NewStore(database)
			checks["database"] = database.HealthCheck
			log.Info().Msg("connected to database")
		}
	}

	settingsStore := settings.NewStore(newSettingsBackend(cfg, store))

	// Connect to NATS (optional)
	var sinks []routellm.UsageSink
	if cfg.NATSURL != "" {
		natsClient, err := routenats.NewClient(cfg.NATSURL, "routellm-api")
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, usage events will not be published")
		} else {
			defer natsClient.Close()
			if err := natsClient.SetupStreams(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to setup NATS streams")
			}
			sinks = append(sinks, routenats.NewUsagePublisher(natsClient))
			checks["nats"] = func(context.Context) error { return natsClient.HealthCheck() }
			log.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")
		}
	}
	if len(sinks) == 0 && store != nil {
		sinks = append(sinks, routellm.UsageSinkFunc(store.InsertUsageRecord))
	}

	router, err := routellm.New(adapters, settingsStore,
		routellm.WithAdapterTimeout(cfg.Routing.AdapterTimeout),
		routellm.WithAbortOnCancel(cfg.Routing.AbortOnCancel),
		routellm.WithUsageTracker(llm.NewUsageTracker(llm.UsageTrackerConfig{MaxRecords: cfg.Routing.MaxRecords})),
		routellm.WithUsageSinks(sinks...),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create router")
	}

	// A route may walk every adapter before answering
	requestTimeout := cfg.Routing.RequestTimeout(len(adapters))

	deps := api.Deps{
		Router:         router,
		Settings:       settingsStore,
		Keys:           llm.NewKeyValidator(llm.BaseURLs(cfg), cfg.LLM.OllamaModel),
		Checks:         checks,
		RequestTimeout: requestTimeout,
	}
	if store != nil {
		deps.History = store
	}

	// Create server
	srv, err := api.NewServer(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not gracefully shutdown the server")
		}
		close(done)
	}()

	log.Info().
		Int("port", cfg.Port).
		Interface("providers", router.Providers()).
		Str("settings", cfg.Settings.Backend).
		Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("could not listen on port")
	}

	<-done
	log.Info().Msg("server stopped")
}

func newSettingsBackend(cfg *config.Config, store *db.Store) settings.Backend {
	switch cfg.Settings.Backend {
	case config.SettingsPostgres:
		return settings.NewPostgresBackend(store, cfg.Settings.Key)
	case config.SettingsFile:
		return settings.NewFileBackend(cfg.Settings.File, cfg.Settings.Key)
	default:
		return settings.NewMemoryBackend()
	}
}
