package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/routellm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

// stubAdapter answers every call with a 100/50 token success unless fail is set
type stubAdapter struct {
	provider llm.Provider
	fail     llm.ErrorKind
}

func (a *stubAdapter) Name() llm.Provider { return a.provider }

func (a *stubAdapter) DefaultModel() string {
	info, _ := a.provider.Info()
	return info.DefaultModel
}

func (a *stubAdapter) Chat(_ context.Context, req llm.ChatRequest) llm.ChatResponse {
	if a.fail != "" {
		return llm.Failed(a.fail, "%s unavailable", a.provider)
	}
	return llm.Succeeded("hello from "+string(a.provider), req.Model, llm.NewUsage(100, 50))
}

func (a *stubAdapter) CalculateCost(usage llm.Usage, model string) float64 {
	info, _ := a.provider.Info()
	return info.Cost(usage, model)
}

func (a *stubAdapter) ValidateKey(context.Context) bool { return true }

func stubAdapters(fail llm.ErrorKind, providers ...llm.Provider) []llm.Adapter {
	if len(providers) == 0 {
		providers = llm.Providers()
	}
	out := make([]llm.Adapter, 0, len(providers))
	for _, p := range providers {
		out = append(out, &stubAdapter{provider: p, fail: fail})
	}
	return out
}

// brokenBackend loads nothing and refuses every save
type brokenBackend struct{}

func (brokenBackend) Load(context.Context) (settings.OptimizationConfig, bool, error) {
	return settings.OptimizationConfig{}, false, nil
}

func (brokenBackend) Save(context.Context, settings.OptimizationConfig) error {
	return errors.New("disk full")
}

type stubKeys struct {
	valid map[string]bool
}

func (k stubKeys) ValidateKey(_ context.Context, _ llm.Provider, rawKey string) bool {
	return k.valid[rawKey]
}

type stubHistory struct {
	records []llm.UsageRecord
	err     error
	limit   int
}

func (h *stubHistory) ListUsageRecords(_ context.Context, limit int) ([]llm.UsageRecord, error) {
	h.limit = limit
	return h.records, h.err
}

// newTestServer wires a real router and settings store over stub adapters
func newTestServer(t *testing.T, adapters []llm.Adapter, deps Deps) *Server {
	t.Helper()

	if deps.Settings == nil {
		deps.Settings = settings.NewStore(settings.NewMemoryBackend())
	}
	if deps.Router == nil {
		router, err := routellm.New(adapters, deps.Settings)
		require.NoError(t, err)
		deps.Router = router
	}

	server, err := NewServer(nil, deps)
	require.NoError(t, err)
	return server
}

func doRequest(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

// deadlineAdapter records the deadline of the context each call receives
type deadlineAdapter struct {
	stubAdapter
	deadlines []time.Duration
}

func (a *deadlineAdapter) Chat(ctx context.Context, req llm.ChatRequest) llm.ChatResponse {
	if deadline, ok := ctx.Deadline(); ok {
		a.deadlines = append(a.deadlines, time.Until(deadline))
	}
	return a.stubAdapter.Chat(ctx, req)
}
