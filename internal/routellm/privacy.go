package routellm

import (
	"github.com/mindmate-hq/routellm/internal/llm"
)

// AdmitByPrivacy filters the registry by a query's privacy level. PUBLIC
// admits every adapter; any other level admits only adapters that never
// leave the device. The filter is a hard rule, not a preference.
func AdmitByPrivacy(level PrivacyLevel, registry []llm.Adapter) []llm.Adapter {
	if level.AllowsExternal() {
		out := make([]llm.Adapter, len(registry))
		copy(out, registry)
		return out
	}

	var local []llm.Adapter
	for _, a := range registry {
		if !a.Name().External() {
			local = append(local, a)
		}
	}
	return local
}
