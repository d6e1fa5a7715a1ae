package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings backends
const (
	SettingsMemory   = "memory"
	SettingsFile     = "file"
	SettingsPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port int
	Env  string

	// Logging
	LogLevel string
	LogFile  string

	// Database (postgres settings backend)
	DatabaseURL string

	// NATS (optional usage event publishing)
	NATSURL string

	// Usage ledger workers draining NATS into Postgres
	LedgerWorkers int

	// Settings store
	Settings SettingsConfig

	// LLM
	LLM LLMConfig

	// Routing
	Routing RoutingConfig
}

// SettingsConfig selects where the optimization settings live
type SettingsConfig struct {
	Backend string // memory, file, postgres
	File    string
	Key     string // user/session key of the settings record
}

// LLMConfig holds provider credentials and endpoints
type LLMConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string

	AnthropicKey     string
	AnthropicBaseURL string

	GeminiKey     string
	GeminiBaseURL string

	XAIKey     string
	XAIBaseURL string

	OpenRouterKey     string
	OpenRouterBaseURL string

	// Local runtime
	LocalEnabled bool
	OllamaURL    string
	OllamaModel  string
}

// RoutingConfig tunes the fallback executor
type RoutingConfig struct {
	AdapterTimeout time.Duration
	AbortOnCancel  bool
	MaxRecords     int
}

// RequestTimeout bounds a whole route call that may try every one of the
// given candidates in turn
func (r RoutingConfig) RequestTimeout(candidates int) time.Duration {
	if candidates < 1 {
		candidates = 1
	}
	timeout := r.AdapterTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return timeout * time.Duration(candidates)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		NATSURL:     getEnv("NATS_URL", ""),

		LedgerWorkers: getEnvInt("LEDGER_WORKERS", 2),

		Settings: SettingsConfig{
			Backend: getEnv("SETTINGS_BACKEND", SettingsFile),
			File:    getEnv("SETTINGS_FILE", defaultSettingsFile()),
			Key:     getEnv("SETTINGS_KEY", "default"),
		},

		LLM: LLMConfig{
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:      getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", ""),
			GeminiKey:         getEnv("GEMINI_API_KEY", ""),
			GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
			XAIKey:            getEnv("XAI_API_KEY", ""),
			XAIBaseURL:        getEnv("XAI_BASE_URL", ""),
			OpenRouterKey:     getEnv("OPENROUTER_API_KEY", ""),
			OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", ""),
			LocalEnabled:      getEnvBool("LOCAL_MODEL_ENABLED", true),
			OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.2"),
		},

		Routing: RoutingConfig{
			AdapterTimeout: getEnvDuration("ADAPTER_TIMEOUT", 30*time.Second),
			AbortOnCancel:  getEnvBool("ABORT_ON_CANCEL", false),
			MaxRecords:     getEnvInt("USAGE_MAX_RECORDS", 1000),
		},
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case SettingsMemory:
	case SettingsFile:
		if c.Settings.File == "" {
			return fmt.Errorf("SETTINGS_FILE required when using file settings backend")
		}
	case SettingsPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL required when using postgres settings backend")
		}
	default:
		return fmt.Errorf("unknown SETTINGS_BACKEND %q", c.Settings.Backend)
	}

	if c.Routing.AdapterTimeout <= 0 {
		return fmt.Errorf("ADAPTER_TIMEOUT must be positive")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultSettingsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".routellm/settings.yaml"
	}
	return filepath.Join(home, ".routellm", "settings.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
