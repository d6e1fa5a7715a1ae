package routellm

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

// costTier buckets models by worst-case price per million tokens
type costTier int

const (
	tierFree costTier = iota
	tierBudget
	tierStandard
	tierPremium
)

func (t costTier) String() string {
	switch t {
	case tierFree:
		return "free"
	case tierBudget:
		return "budget"
	case tierStandard:
		return "standard"
	default:
		return "premium"
	}
}

func tierOf(p llm.Pricing) costTier {
	switch w := p.WorstCase(); {
	case w == 0:
		return tierFree
	case w < 1:
		return tierBudget
	case w < 20:
		return tierStandard
	default:
		return tierPremium
	}
}

const (
	// Below this complexity quality_first stops paying for the top model
	trivialComplexity = 0.15
	// Capability headroom balanced asks for above the complexity score
	balancedMargin = 0.10
	// Share of the complexity score aggressive accepts as capability
	aggressiveFactor = 0.80
	// Keeps the suitability-to-cost ratio finite for free models
	costEpsilon = 0.01

	baseOutputTokens  = 150
	extraOutputTokens = 850
)

// option is one admitted model with its catalog profile
type option struct {
	llm.ModelProfile
	tier  costTier
	order int
}

// optionsFor expands admitted adapters into their catalog models. The local
// runtime contributes only the model it serves.
func optionsFor(admitted []llm.Adapter) []option {
	var opts []option
	add := func(m llm.ModelProfile) {
		opts = append(opts, option{ModelProfile: m, tier: tierOf(m.Pricing), order: len(opts)})
	}

	for _, a := range admitted {
		table, ok := a.Name().Info()
		if !ok {
			continue
		}
		if !a.Name().External() {
			add(table.ProfileOrDefault(a.DefaultModel()))
			continue
		}

		listed := false
		for _, m := range table.Models {
			add(m)
			listed = listed || m.Model == a.DefaultModel()
		}
		if !listed && a.DefaultModel() != "" {
			add(table.ProfileOrDefault(a.DefaultModel()))
		}
	}
	return opts
}

// Select produces a route decision from the admitted adapters. promptTokens
// is the estimated size of the outgoing prompt, used for the cost estimate.
func Select(admitted []llm.Adapter, complexity float64, cfg settings.OptimizationConfig, promptTokens int) (RouteDecision, error) {
	opts := optionsFor(admitted)
	if len(opts) == 0 {
		return RouteDecision{}, ErrNoEligibleProvider
	}
	complexity = clamp01(complexity)

	var external, local []option
	for _, o := range opts {
		if o.Provider.External() {
			external = append(external, o)
		} else {
			local = append(local, o)
		}
	}

	var reasons []string
	pool := external
	if len(pool) == 0 {
		pool = local
		reasons = append(reasons, "only the local model is eligible")
	}

	primary, why := pick(pool, complexity, cfg.OptimizationLevel)
	reasons = append(reasons, why)

	chain := rankFallbacks(external, primary.Provider, complexity)
	if len(chain) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d paid fallback(s) by suitability per cost", len(chain)))
	}
	if cfg.FallbackToLocal && primary.Provider.External() && len(local) > 0 {
		chain = append(chain, Candidate{Provider: local[0].Provider, Model: local[0].Model})
		reasons = append(reasons, "local model appended as last resort")
	}

	return RouteDecision{
		Provider:        primary.Provider,
		Model:           primary.Model,
		EstimatedCost:   estimateCost(primary.Pricing, promptTokens, complexity),
		ComplexityScore: complexity,
		Reasoning:       strings.Join(reasons, "; "),
		FallbackChain:   chain,
	}, nil
}

// pick chooses the primary option for the optimization level
func pick(pool []option, complexity float64, level settings.OptimizationLevel) (option, string) {
	switch level {
	case settings.LevelAggressive:
		need := complexity * aggressiveFactor
		return cheapestQualifying(pool, need, fmt.Sprintf("aggressive: complexity %.2f needs capability >= %.2f", complexity, need))

	case settings.LevelQualityFirst:
		if complexity >= trivialComplexity {
			best := mostCapable(pool)
			return best, fmt.Sprintf("quality_first: complexity %.2f, most capable model %s (capability %.2f)",
				complexity, best.Model, best.Capability)
		}
		need := math.Min(1, complexity+balancedMargin)
		return cheapestQualifying(pool, need, fmt.Sprintf("quality_first: complexity %.2f is trivial, needs capability >= %.2f", complexity, need))

	default:
		need := math.Min(1, complexity+balancedMargin)
		return cheapestQualifying(pool, need, fmt.Sprintf("balanced: complexity %.2f needs capability >= %.2f", complexity, need))
	}
}

// cheapestQualifying returns the cheapest model of the lowest cost tier that
// has a model meeting need, or the most capable model when none does
func cheapestQualifying(pool []option, need float64, prefix string) (option, string) {
	var qualifying []option
	for _, o := range pool {
		if o.Capability >= need {
			qualifying = append(qualifying, o)
		}
	}
	if len(qualifying) == 0 {
		best := mostCapable(pool)
		return best, fmt.Sprintf("%s; nothing qualifies, using most capable %s", prefix, best.Model)
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		a, b := qualifying[i], qualifying[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.Pricing.Blended() != b.Pricing.Blended() {
			return a.Pricing.Blended() < b.Pricing.Blended()
		}
		if a.Capability != b.Capability {
			return a.Capability > b.Capability
		}
		return a.order < b.order
	})

	best := qualifying[0]
	return best, fmt.Sprintf("%s; cheapest qualifying tier %s, %s at $%.4f/M blended",
		prefix, best.tier, best.Model, best.Pricing.Blended())
}

func mostCapable(pool []option) option {
	best := pool[0]
	for _, o := range pool[1:] {
		switch {
		case o.Capability > best.Capability:
			best = o
		case o.Capability == best.Capability && o.Pricing.Blended() < best.Pricing.Blended():
			best = o
		}
	}
	return best
}

// suitability is 1 for models at least as capable as the query needs and
// shrinks with the capability shortfall otherwise
func suitability(capability, complexity float64) float64 {
	if capability >= complexity {
		return 1
	}
	return 1 - (complexity - capability)
}

func valueRatio(o option, complexity float64) float64 {
	return suitability(o.Capability, complexity) / (o.Pricing.Blended() + costEpsilon)
}

// rankFallbacks keeps the best-value model of every provider other than the
// primary's and orders them by decreasing suitability per cost. One entry per
// provider means no provider is attempted twice.
func rankFallbacks(opts []option, exclude llm.Provider, complexity float64) []Candidate {
	best := make(map[llm.Provider]option)
	for _, o := range opts {
		if o.Provider == exclude {
			continue
		}
		cur, ok := best[o.Provider]
		if !ok || valueRatio(o, complexity) > valueRatio(cur, complexity) {
			best[o.Provider] = o
		}
	}

	ranked := make([]option, 0, len(best))
	for _, o := range best {
		ranked = append(ranked, o)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ri, rj := valueRatio(ranked[i], complexity), valueRatio(ranked[j], complexity)
		if ri != rj {
			return ri > rj
		}
		return ranked[i].order < ranked[j].order
	})

	chain := make([]Candidate, len(ranked))
	for i, o := range ranked {
		chain[i] = Candidate{Provider: o.Provider, Model: o.Model}
	}
	return chain
}

// EstimateTokens approximates a token count by blending character and word
// based estimates
func EstimateTokens(text string) int {
	chars := float64(utf8.RuneCountInString(text)) / 4
	words := float64(len(strings.Fields(text))) * 1.3
	return int(math.Ceil((chars + words) / 2))
}

// expectedOutputTokens grows the expected answer length with complexity
func expectedOutputTokens(complexity float64) int {
	return baseOutputTokens + int(math.Round(complexity*extraOutputTokens))
}

func estimateCost(p llm.Pricing, promptTokens int, complexity float64) float64 {
	return p.Cost(llm.NewUsage(promptTokens, expectedOutputTokens(complexity)))
}
