package routellm

import (
	"fmt"

	"github.com/mindmate-hq/routellm/internal/llm"
)

// Providers each role leans toward, most preferred first
var rolePreferences = map[Role][]llm.Provider{
	RoleCreative:   {llm.ProviderOpenAI, llm.ProviderXAI, llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderOpenRouter},
	RoleAnalytical: {llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderXAI, llm.ProviderOpenRouter},
	RoleCautious:   {llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderOpenRouter, llm.ProviderXAI},
}

// ApplyRole biases a computed decision toward the role's preferred providers
// without re-running selection. Preferences are taken in order: one that is
// already the primary leaves the decision unchanged, one in the fallback chain
// is promoted, and an admitted external provider outside the decision is
// promoted with its default model. With no match the decision is returned as
// is. The chain invariants hold on every path.
func ApplyRole(d RouteDecision, role Role, admitted []llm.Adapter, promptTokens int) RouteDecision {
	prefs, ok := rolePreferences[role]
	if !ok {
		return d
	}

	byProvider := make(map[llm.Provider]llm.Adapter, len(admitted))
	for _, a := range admitted {
		byProvider[a.Name()] = a
	}

	for _, p := range prefs {
		if p == d.Provider {
			return d
		}
		for i, c := range d.FallbackChain {
			if c.Provider == p {
				return promote(d, c, i, role, promptTokens)
			}
		}
		if a, ok := byProvider[p]; ok && p.External() {
			return promote(d, Candidate{Provider: p, Model: a.DefaultModel()}, -1, role, promptTokens)
		}
	}
	return d
}

// promote makes c the primary. The old primary becomes the first fallback;
// chainIndex is c's position in the chain, or -1 if it was not there.
func promote(d RouteDecision, c Candidate, chainIndex int, role Role, promptTokens int) RouteDecision {
	chain := make([]Candidate, 0, len(d.FallbackChain)+1)
	chain = append(chain, d.Primary())
	for i, fc := range d.FallbackChain {
		if i == chainIndex || fc == c {
			continue
		}
		chain = append(chain, fc)
	}

	out := d
	out.Provider = c.Provider
	out.Model = c.Model
	out.FallbackChain = chain
	out.Reasoning = fmt.Sprintf("%s; role %s prefers %s", d.Reasoning, role, c)

	if table, ok := c.Provider.Info(); ok {
		out.EstimatedCost = estimateCost(table.Lookup(c.Model), promptTokens, d.ComplexityScore)
	}
	return out
}
