package llm

import "fmt"

// Provider identifies a backend. The set is closed: every value has a catalog
// entry returned by Info.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
	ProviderXAI        Provider = "xai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderLocal      Provider = "local"
)

// Providers lists every supported provider in catalog order
func Providers() []Provider {
	return []Provider{
		ProviderOpenAI,
		ProviderAnthropic,
		ProviderGemini,
		ProviderXAI,
		ProviderOpenRouter,
		ProviderLocal,
	}
}

// ParseProvider converts a name into a Provider
func ParseProvider(name string) (Provider, error) {
	p := Provider(name)
	if _, ok := p.Info(); !ok {
		return "", fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// External reports whether calls to this provider leave the device
func (p Provider) External() bool {
	return p != ProviderLocal
}

// Pricing is USD per one million tokens
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
}

// WorstCase is the higher of the two rates
func (p Pricing) WorstCase() float64 {
	if p.OutputPerMillion > p.InputPerMillion {
		return p.OutputPerMillion
	}
	return p.InputPerMillion
}

// Blended is the mean of the input and output rates
func (p Pricing) Blended() float64 {
	return (p.InputPerMillion + p.OutputPerMillion) / 2
}

// Cost prices a usage at these rates
func (p Pricing) Cost(usage Usage) float64 {
	return float64(usage.PromptTokens)/1e6*p.InputPerMillion +
		float64(usage.CompletionTokens)/1e6*p.OutputPerMillion
}

// ModelProfile describes one model a provider serves
type ModelProfile struct {
	Provider   Provider
	Model      string
	Pricing    Pricing
	Capability float64 // modeled quality in [0,1]
}

// PricingTable is a provider's per-model pricing with a designated default
type PricingTable struct {
	Provider     Provider
	DefaultModel string
	Models       []ModelProfile
}

// Lookup returns the pricing for model, or the default model's pricing when
// the model is not listed
func (t PricingTable) Lookup(model string) Pricing {
	if m, ok := t.Profile(model); ok {
		return m.Pricing
	}
	m, _ := t.Profile(t.DefaultModel)
	return m.Pricing
}

// Profile finds a listed model
func (t PricingTable) Profile(model string) (ModelProfile, bool) {
	for _, m := range t.Models {
		if m.Model == model {
			return m, true
		}
	}
	return ModelProfile{}, false
}

// ProfileOrDefault returns the listed profile for model, or the default
// model's profile relabelled as model
func (t PricingTable) ProfileOrDefault(model string) ModelProfile {
	if m, ok := t.Profile(model); ok {
		return m
	}
	m, _ := t.Profile(t.DefaultModel)
	m.Provider = t.Provider
	if model != "" {
		m.Model = model
	}
	return m
}

// Cost prices usage for model using Lookup
func (t PricingTable) Cost(usage Usage, model string) float64 {
	return t.Lookup(model).Cost(usage)
}

// Info returns the catalog entry for a provider
func (p Provider) Info() (PricingTable, bool) {
	switch p {
	case ProviderOpenAI:
		return table(p, "gpt-4o-mini",
			model("gpt-4o-mini", 0.15, 0.60, 0.55),
			model("gpt-4o", 2.50, 10.00, 0.85),
		), true
	case ProviderAnthropic:
		return table(p, "claude-3-5-sonnet-20241022",
			model("claude-3-5-haiku-20241022", 0.80, 4.00, 0.60),
			model("claude-3-5-sonnet-20241022", 3.00, 15.00, 0.90),
			model("claude-3-opus-20240229", 15.00, 75.00, 0.95),
		), true
	case ProviderGemini:
		return table(p, "gemini-1.5-flash",
			model("gemini-1.5-flash", 0.075, 0.30, 0.50),
			model("gemini-1.5-pro", 1.25, 5.00, 0.80),
		), true
	case ProviderXAI:
		return table(p, "grok-3-mini",
			model("grok-3-mini", 0.30, 0.50, 0.55),
			model("grok-3", 3.00, 15.00, 0.85),
		), true
	case ProviderOpenRouter:
		return table(p, "meta-llama/llama-3.1-70b-instruct",
			model("meta-llama/llama-3.1-70b-instruct", 0.52, 0.75, 0.65),
			model("anthropic/claude-3.5-sonnet", 3.00, 15.00, 0.90),
		), true
	case ProviderLocal:
		return table(p, DefaultLocalModel,
			model(DefaultLocalModel, 0, 0, 0.35),
		), true
	default:
		return PricingTable{}, false
	}
}

// DefaultLocalModel is the model served by the local runtime unless configured otherwise
const DefaultLocalModel = "llama3.2"

func table(p Provider, defaultModel string, models ...ModelProfile) PricingTable {
	for i := range models {
		models[i].Provider = p
	}
	return PricingTable{Provider: p, DefaultModel: defaultModel, Models: models}
}

func model(name string, in, out, capability float64) ModelProfile {
	return ModelProfile{
		Model:      name,
		Pricing:    Pricing{InputPerMillion: in, OutputPerMillion: out},
		Capability: capability,
	}
}

// pricingFor is the catalog table for p; unknown providers get an empty table
// that prices everything at zero
func pricingFor(p Provider) PricingTable {
	t, _ := p.Info()
	return t
}
