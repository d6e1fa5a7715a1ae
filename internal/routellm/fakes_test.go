package routellm

import (
	"context"
	"sync"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

// fakeAdapter prices with the real catalog and answers with respond, or a
// fixed 100/50 token success when respond is nil
type fakeAdapter struct {
	provider llm.Provider
	model    string
	respond  func(ctx context.Context, req llm.ChatRequest) llm.ChatResponse
	cost     *float64

	mu    sync.Mutex
	calls []llm.ChatRequest
}

func newFake(p llm.Provider) *fakeAdapter {
	return &fakeAdapter{provider: p}
}

func failingFake(p llm.Provider, kind llm.ErrorKind, msg string) *fakeAdapter {
	return &fakeAdapter{
		provider: p,
		respond: func(context.Context, llm.ChatRequest) llm.ChatResponse {
			return llm.Failed(kind, "%s", msg)
		},
	}
}

func (f *fakeAdapter) Name() llm.Provider { return f.provider }

func (f *fakeAdapter) DefaultModel() string {
	if f.model != "" {
		return f.model
	}
	table, _ := f.provider.Info()
	return table.DefaultModel
}

func (f *fakeAdapter) Chat(ctx context.Context, req llm.ChatRequest) llm.ChatResponse {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(ctx, req)
	}
	return llm.Succeeded("reply from "+string(f.provider), req.Model, llm.NewUsage(100, 50))
}

func (f *fakeAdapter) CalculateCost(usage llm.Usage, model string) float64 {
	if f.cost != nil {
		return *f.cost
	}
	table, _ := f.provider.Info()
	return table.Cost(usage, model)
}

func (f *fakeAdapter) ValidateKey(context.Context) bool { return true }

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAdapter) lastCall() llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// allFakes registers one succeeding fake per catalog provider
func allFakes() ([]llm.Adapter, map[llm.Provider]*fakeAdapter) {
	var adapters []llm.Adapter
	byProvider := make(map[llm.Provider]*fakeAdapter)
	for _, p := range llm.Providers() {
		f := newFake(p)
		adapters = append(adapters, f)
		byProvider[p] = f
	}
	return adapters, byProvider
}

func adapterList(fakes ...*fakeAdapter) []llm.Adapter {
	out := make([]llm.Adapter, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

type staticConfig settings.OptimizationConfig

func (c staticConfig) GetConfig(context.Context) settings.OptimizationConfig {
	return settings.OptimizationConfig(c)
}

func configFor(level settings.OptimizationLevel, fallbackToLocal bool) staticConfig {
	return staticConfig{OptimizationLevel: level, FallbackToLocal: fallbackToLocal}
}
