package routellm

import (
	"github.com/mindmate-hq/routellm/internal/llm"
)

// ActualCost prices the response that served a request with the serving
// adapter's pricing table. Failed responses cost nothing. Providers can bill
// some failures, so summed ledger costs may undercount real spend.
func ActualCost(adapter llm.Adapter, model string, resp llm.ChatResponse) float64 {
	if adapter == nil || !resp.Success || resp.Usage == nil {
		return 0
	}
	cost := adapter.CalculateCost(*resp.Usage, model)
	if cost < 0 {
		return 0
	}
	return cost
}
