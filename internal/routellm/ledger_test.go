package routellm

import (
	"testing"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestActualCost(t *testing.T) {
	openai := newFake(llm.ProviderOpenAI)
	ok := llm.Succeeded("hi", "gpt-4o", llm.NewUsage(1_000_000, 1_000_000))
	negative := -1.0

	tests := []struct {
		name    string
		adapter llm.Adapter
		model   string
		resp    llm.ChatResponse
		want    float64
	}{
		{"priced by the requested model", openai, "gpt-4o", ok, 12.50},
		{"unknown model priced as default", openai, "gpt-9", ok, 0.75},
		{"failed response is free", openai, "gpt-4o", llm.Failed(llm.KindRateLimited, "HTTP 429"), 0},
		{"missing usage is free", openai, "gpt-4o", llm.ChatResponse{Success: true, Content: "hi"}, 0},
		{"no adapter", nil, "gpt-4o", ok, 0},
		{"local is free", newFake(llm.ProviderLocal), "llama3.2", ok, 0},
		{"negative cost clamped", &fakeAdapter{provider: llm.ProviderXAI, cost: &negative}, "grok-3", ok, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ActualCost(tt.adapter, tt.model, tt.resp), 1e-9)
		})
	}
}
