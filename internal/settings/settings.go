// Package settings persists the user's routing optimization preferences
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrConfigUnavailable indicates the backing store could not be read or written
	ErrConfigUnavailable = errors.New("config store unavailable")
	// ErrInvalidLevel indicates an unknown optimization level
	ErrInvalidLevel = errors.New("invalid optimization level")
)

// OptimizationLevel biases route selection toward cost or quality
type OptimizationLevel string

const (
	LevelAggressive   OptimizationLevel = "aggressive"
	LevelBalanced     OptimizationLevel = "balanced"
	LevelQualityFirst OptimizationLevel = "quality_first"
)

// Levels lists the supported optimization levels
func Levels() []OptimizationLevel {
	return []OptimizationLevel{LevelAggressive, LevelBalanced, LevelQualityFirst}
}

// ParseOptimizationLevel parses a level name, case-insensitively
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	level := OptimizationLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return level, nil
}

// Valid reports whether l is a supported level
func (l OptimizationLevel) Valid() bool {
	switch l {
	case LevelAggressive, LevelBalanced, LevelQualityFirst:
		return true
	}
	return false
}

// OptimizationConfig is the single persisted settings record
type OptimizationConfig struct {
	OptimizationLevel OptimizationLevel `json:"optimization_level" yaml:"optimization_level"`
	FallbackToLocal   bool              `json:"fallback_to_local" yaml:"fallback_to_local"`
}

// DefaultConfig is the record created on first read
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		OptimizationLevel: LevelBalanced,
		FallbackToLocal:   true,
	}
}

// Backend loads and saves the settings record for one key
type Backend interface {
	// Load returns found=false when no record exists yet
	Load(ctx context.Context) (cfg OptimizationConfig, found bool, err error)
	Save(ctx context.Context, cfg OptimizationConfig) error
}

// loadRetryInterval is how long an unreachable backend is left alone before
// reads try it again
const loadRetryInterval = 5 * time.Second

// Store is the sole writer of the settings record. Reads are served from an
// in-memory copy after the first successful load; setters write through.
//
// While the backend cannot be read, reads get the defaults (plus any changes
// made during the outage) and setters apply in memory only, so the stored
// record is never overwritten with values it was not read from.
type Store struct {
	backend Backend

	mu       sync.Mutex
	cached   *OptimizationConfig
	degraded *OptimizationConfig
	retryAt  time.Time

	retryInterval time.Duration
	now           func() time.Time
}

// NewStore creates a store over backend
func NewStore(backend Backend) *Store {
	return &Store{
		backend:       backend,
		retryInterval: loadRetryInterval,
		now:           time.Now,
	}
}

// GetConfig returns the current settings, creating the defaults if the record
// does not exist. An unreachable backend yields the defaults and never fails.
func (s *Store) GetConfig(ctx context.Context) OptimizationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, _ := s.current(ctx, false)
	return cfg
}

// SetOptimizationLevel updates the optimization level. The new value applies
// to this process even when persisting it fails; that case returns an error
// wrapping ErrConfigUnavailable.
func (s *Store) SetOptimizationLevel(ctx context.Context, level OptimizationLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	return s.update(ctx, func(cfg *OptimizationConfig) {
		cfg.OptimizationLevel = level
	})
}

// SetFallbackToLocal toggles appending the local model to fallback chains
func (s *Store) SetFallbackToLocal(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(cfg *OptimizationConfig) {
		cfg.FallbackToLocal = enabled
	})
}

func (s *Store) update(ctx context.Context, apply func(cfg *OptimizationConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.current(ctx, true)
	apply(&cfg)
	if !ok {
		s.degraded = &cfg
		return fmt.Errorf("%w: record could not be read, change not saved", ErrConfigUnavailable)
	}
	return s.write(ctx, cfg)
}

// current returns the settings and whether they came from the backend. A
// failed load is retried once retryInterval has passed, or right away when
// force is set. Must be called with mu held.
func (s *Store) current(ctx context.Context, force bool) (OptimizationConfig, bool) {
	if s.cached != nil {
		return *s.cached, true
	}
	if s.degraded != nil && !force && s.now().Before(s.retryAt) {
		return *s.degraded, false
	}

	cfg, found, err := s.backend.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable, using defaults")
		if s.degraded == nil {
			d := DefaultConfig()
			s.degraded = &d
		}
		s.retryAt = s.now().Add(s.retryInterval)
		return *s.degraded, false
	}

	if !found {
		cfg = DefaultConfig()
		if err := s.backend.Save(ctx, cfg); err != nil {
			log.Warn().Err(err).Msg("failed to persist default settings")
		}
	}

	if !cfg.OptimizationLevel.Valid() {
		log.Warn().Str("optimization_level", string(cfg.OptimizationLevel)).Msg("stored optimization level is invalid, using default")
		cfg.OptimizationLevel = DefaultConfig().OptimizationLevel
	}

	s.degraded = nil
	s.cached = &cfg
	return cfg, true
}

// write must be called with mu held
func (s *Store) write(ctx context.Context, cfg OptimizationConfig) error {
	s.cached = &cfg

	if err := s.backend.Save(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("failed to persist settings")
		return fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}

	log.Debug().
		Str("optimization_level", string(cfg.OptimizationLevel)).
		Bool("fallback_to_local", cfg.FallbackToLocal).
		Msg("settings saved")
	return nil
}
