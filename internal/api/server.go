package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/routellm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

// Router routes queries; *routellm.Router implements it
type Router interface {
	Route(ctx context.Context, q routellm.Query) (*routellm.RoutingResult, error)
	EstimateCost(ctx context.Context, q routellm.Query) (*routellm.CostEstimate, error)
	Providers() []llm.Provider
	Usage() *llm.UsageTracker
}

// SettingsStore reads and updates optimization settings
type SettingsStore interface {
	GetConfig(ctx context.Context) settings.OptimizationConfig
	SetOptimizationLevel(ctx context.Context, level settings.OptimizationLevel) error
	SetFallbackToLocal(ctx context.Context, enabled bool) error
}

// KeyValidator checks a provider API key against the provider
type KeyValidator interface {
	ValidateKey(ctx context.Context, provider llm.Provider, rawKey string) bool
}

// UsageHistory lists persisted usage records
type UsageHistory interface {
	ListUsageRecords(ctx context.Context, limit int) ([]llm.UsageRecord, error)
}

// Deps are the collaborators the server needs. Router and Settings are
// required; the rest are optional.
type Deps struct {
	Router   Router
	Settings SettingsStore
	Keys     KeyValidator
	History  UsageHistory

	// Checks are run by /ready, keyed by dependency name
	Checks map[string]func(context.Context) error

	// RequestTimeout is the deadline put on every request context.
	// Defaults to defaultRequestTimeout.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 60 * time.Second

// Server represents the API server
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	routing  Router
	settings SettingsStore
	keys     KeyValidator
	history  UsageHistory
	checks   map[string]func(context.Context) error
	timeout  time.Duration
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		routing:  deps.Router,
		settings: deps.Settings,
		keys:     deps.Keys,
		history:  deps.History,
		checks:   deps.Checks,
		timeout:  deps.RequestTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.timeout))
	s.router.Use(corsMiddleware)
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/route", s.routeQuery)
		r.Post("/estimate", s.estimateCost)
		r.Get("/providers", s.listProviders)

		// Optimization settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.getSettings)
			r.Put("/optimization-level", s.setOptimizationLevel)
			r.Put("/fallback-to-local", s.setFallbackToLocal)
		})

		// Provider keys
		r.Route("/keys", func(r chi.Router) {
			r.Post("/validate", s.validateKey)
			r.Post("/mask", s.maskKey)
		})

		// Usage
		r.Route("/usage", func(r chi.Router) {
			r.Get("/", s.getUsage)
			r.Get("/history", s.getUsageHistory)
			r.Get("/export", s.exportUsage)
		})
	})
}

// Health check handlers
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		log.Warn().Interface("failed", failed).Msg("readiness check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": failed,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
