package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// AdapterFactory builds an adapter for a provider from a raw key
type AdapterFactory func(apiKey string) Adapter

// KeyValidator probes provider keys with a minimal completion
type KeyValidator struct {
	factories map[Provider]AdapterFactory
}

// NewKeyValidator creates a validator that talks to the providers' public
// endpoints. baseURLs may override an endpoint per provider.
func NewKeyValidator(baseURLs map[Provider]string, localModel string) *KeyValidator {
	return &KeyValidator{
		factories: map[Provider]AdapterFactory{
			ProviderOpenAI: func(key string) Adapter {
				return NewOpenAIClient(key, baseURLs[ProviderOpenAI])
			},
			ProviderXAI: func(key string) Adapter {
				return NewXAIClient(key, baseURLs[ProviderXAI])
			},
			ProviderOpenRouter: func(key string) Adapter {
				return NewOpenRouterClient(key, baseURLs[ProviderOpenRouter])
			},
			ProviderGemini: func(key string) Adapter {
				return NewGeminiClient(key, baseURLs[ProviderGemini])
			},
			ProviderAnthropic: func(key string) Adapter {
				return NewAnthropicClient(key, baseURLs[ProviderAnthropic])
			},
			ProviderLocal: func(string) Adapter {
				c, err := NewOllamaClient(baseURLs[ProviderLocal], localModel)
				if err != nil {
					return nil
				}
				return c
			},
		},
	}
}

// NewKeyValidatorWithFactories creates a validator over custom factories
func NewKeyValidatorWithFactories(factories map[Provider]AdapterFactory) *KeyValidator {
	return &KeyValidator{factories: factories}
}

// ValidateKey reports whether rawKey works for provider. Blank keys are
// rejected without a network call, except for the keyless local runtime.
// It never mutates persisted state.
func (v *KeyValidator) ValidateKey(ctx context.Context, provider Provider, rawKey string) bool {
	key := strings.TrimSpace(rawKey)
	if key == "" && provider.External() {
		return false
	}

	factory, ok := v.factories[provider]
	if !ok {
		log.Debug().Str("provider", string(provider)).Msg("no adapter factory for provider")
		return false
	}
	adapter := factory(key)
	if adapter == nil {
		return false
	}

	valid := adapter.ValidateKey(ctx)
	log.Debug().
		Str("provider", string(provider)).
		Str("key", MaskAPIKey(key)).
		Bool("valid", valid).
		Msg("validated provider key")
	return valid
}

// MaskAPIKey renders a key for display: keys of at least 8 characters keep
// their first and last 4 characters, everything else becomes '*'. The result
// has the same length as the input.
func MaskAPIKey(key string) string {
	runes := []rune(key)
	n := len(runes)
	if n < 8 {
		return strings.Repeat("*", n)
	}
	return string(runes[:4]) + strings.Repeat("*", n-8) + string(runes[n-4:])
}
