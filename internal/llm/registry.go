package llm

import (
	"fmt"

	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/rs/zerolog/log"
)

// NewAdapters builds one adapter per configured provider, in catalog order.
// Paid providers are registered only when a key is present; the local runtime
// when it is enabled.
func NewAdapters(cfg *config.Config) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(Providers()))

	if cfg.LLM.OpenAIKey != "" {
		adapters = append(adapters, NewOpenAIClient(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL))
	}
	if cfg.LLM.AnthropicKey != "" {
		adapters = append(adapters, NewAnthropicClient(cfg.LLM.AnthropicKey, cfg.LLM.AnthropicBaseURL))
	}
	if cfg.LLM.GeminiKey != "" {
		adapters = append(adapters, NewGeminiClient(cfg.LLM.GeminiKey, cfg.LLM.GeminiBaseURL))
	}
	if cfg.LLM.XAIKey != "" {
		adapters = append(adapters, NewXAIClient(cfg.LLM.XAIKey, cfg.LLM.XAIBaseURL))
	}
	if cfg.LLM.OpenRouterKey != "" {
		adapters = append(adapters, NewOpenRouterClient(cfg.LLM.OpenRouterKey, cfg.LLM.OpenRouterBaseURL))
	}
	if cfg.LLM.LocalEnabled {
		local, err := NewOllamaClient(cfg.LLM.OllamaURL, cfg.LLM.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("failed to configure local model: %w", err)
		}
		adapters = append(adapters, local)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	for _, a := range adapters {
		log.Debug().Str("provider", string(a.Name())).Str("default_model", a.DefaultModel()).Msg("registered provider")
	}
	return adapters, nil
}

// BaseURLs collects the configured endpoint overrides per provider
func BaseURLs(cfg *config.Config) map[Provider]string {
	return map[Provider]string{
		ProviderOpenAI:     cfg.LLM.OpenAIBaseURL,
		ProviderAnthropic:  cfg.LLM.AnthropicBaseURL,
		ProviderGemini:     cfg.LLM.GeminiBaseURL,
		ProviderXAI:        cfg.LLM.XAIBaseURL,
		ProviderOpenRouter: cfg.LLM.OpenRouterBaseURL,
		ProviderLocal:      cfg.LLM.OllamaURL,
	}
}
