package routellm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/settings"
	"github.com/rs/zerolog/log"
)

const (
	sinkTimeout    = 5 * time.Second
	queryPreviewLn = 40
)

// ConfigSource yields the optimization settings read at the start of each request
type ConfigSource interface {
	GetConfig(ctx context.Context) settings.OptimizationConfig
}

// UsageSink receives the ledger entry of every successful request
type UsageSink interface {
	RecordUsage(ctx context.Context, rec llm.UsageRecord) error
}

// UsageSinkFunc adapts a function to UsageSink
type UsageSinkFunc func(ctx context.Context, rec llm.UsageRecord) error

func (f UsageSinkFunc) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	return f(ctx, rec)
}

// Option configures a Router
type Option func(*Router)

// WithAdapterTimeout bounds every adapter call
func WithAdapterTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// WithAbortOnCancel stops walking the chain once the caller's context is done,
// instead of recording a failed attempt for each remaining candidate
func WithAbortOnCancel(abort bool) Option {
	return func(r *Router) { r.abortOnCancel = abort }
}

// WithUsageTracker sets the in-memory usage tracker
func WithUsageTracker(t *llm.UsageTracker) Option {
	return func(r *Router) { r.tracker = t }
}

// WithUsageSinks adds destinations for usage records
func WithUsageSinks(sinks ...UsageSink) Option {
	return func(r *Router) { r.sinks = append(r.sinks, sinks...) }
}

// Router routes queries to providers. It holds no per-request state, so one
// Router serves concurrent callers.
type Router struct {
	adapters   []llm.Adapter
	byProvider map[llm.Provider]llm.Adapter
	config     ConfigSource

	timeout       time.Duration
	abortOnCancel bool
	executor      *Executor

	tracker *llm.UsageTracker
	sinks   []UsageSink
}

// New creates a router over the given adapters, at most one per provider.
// A nil config source uses in-memory default settings.
func New(adapters []llm.Adapter, config ConfigSource, opts ...Option) (*Router, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters registered")
	}

	byProvider := make(map[llm.Provider]llm.Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		if _, dup := byProvider[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate adapter for provider %s", a.Name())
		}
		byProvider[a.Name()] = a
	}

	if config == nil {
		config = settings.NewStore(settings.NewMemoryBackend())
	}

	r := &Router{
		adapters:   append([]llm.Adapter(nil), adapters...),
		byProvider: byProvider,
		config:     config,
		timeout:    DefaultAdapterTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = llm.NewUsageTracker(llm.UsageTrackerConfig{})
	}
	r.executor = NewExecutor(r.adapters, r.timeout, r.abortOnCancel)

	return r, nil
}

// Providers lists the registered providers in registration order
func (r *Router) Providers() []llm.Provider {
	out := make([]llm.Provider, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Name()
	}
	return out
}

// Usage returns the in-memory usage tracker
func (r *Router) Usage() *llm.UsageTracker {
	return r.tracker
}

func normalize(q Query) Query {
	if q.Feature == "" {
		q.Feature = FeatureChatCoaching
	}
	q.PrivacyLevel = ParsePrivacyLevel(string(q.PrivacyLevel))
	return q
}

// Decide runs the privacy gate, scorer and selector without calling any provider
func (r *Router) Decide(ctx context.Context, q Query) (RouteDecision, error) {
	if err := q.Validate(); err != nil {
		return RouteDecision{}, err
	}
	return r.decide(ctx, normalize(q))
}

// decide expects a validated, normalized query. On ErrNoEligibleProvider the
// returned decision still carries the complexity score and reasoning.
func (r *Router) decide(ctx context.Context, q Query) (RouteDecision, error) {
	complexity := ScoreComplexity(q.Query, q.Feature)

	var privacyNote string
	if !q.PrivacyLevel.AllowsExternal() {
		privacyNote = fmt.Sprintf("privacy %s: external providers excluded", q.PrivacyLevel)
	}

	admitted := AdmitByPrivacy(q.PrivacyLevel, r.adapters)
	if len(admitted) == 0 {
		return RouteDecision{
			ComplexityScore: complexity,
			Reasoning:       privacyNote + "; no local model registered",
		}, ErrNoEligibleProvider
	}

	cfg := r.config.GetConfig(ctx)
	promptTokens := EstimateTokens(SystemPrompt(q.Feature)) + EstimateTokens(q.Query)

	d, err := Select(admitted, complexity, cfg, promptTokens)
	if err != nil {
		return RouteDecision{ComplexityScore: complexity, Reasoning: privacyNote}, err
	}
	if q.Role != RoleNone && q.PrivacyLevel.AllowsExternal() {
		d = ApplyRole(d, q.Role, admitted, promptTokens)
	}
	if privacyNote != "" {
		d.Reasoning = privacyNote + "; " + d.Reasoning
	}

	log.Debug().
		Str("query", preview(q.Query)).
		Str("feature", string(q.Feature)).
		Str("privacy", string(q.PrivacyLevel)).
		Str("optimization_level", string(cfg.OptimizationLevel)).
		Float64("complexity", d.ComplexityScore).
		Str("primary", d.Primary().String()).
		Int("fallbacks", len(d.FallbackChain)).
		Msg("route selected")

	return d, nil
}

// EstimateCost performs selection without execution
func (r *Router) EstimateCost(ctx context.Context, q Query) (*CostEstimate, error) {
	d, err := r.Decide(ctx, q)
	if err != nil {
		return nil, err
	}
	return &CostEstimate{
		EstimatedCost:   d.EstimatedCost,
		Provider:        d.Provider,
		Model:           d.Model,
		ComplexityScore: d.ComplexityScore,
		Reasoning:       d.Reasoning,
	}, nil
}

// Route selects a route for q and executes it with fallback. An error is
// returned only for invalid input; provider failures, including an empty
// candidate set, are reported in the result.
func (r *Router) Route(ctx context.Context, q Query) (*RoutingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q = normalize(q)
	start := time.Now()

	result := &RoutingResult{
		RequestID:          uuid.NewString(),
		ProvidersAttempted: []string{},
	}

	d, err := r.decide(ctx, q)
	result.Route = d
	if errors.Is(err, ErrNoEligibleProvider) {
		result.Response = llm.Failed(llm.KindProvider, "no eligible provider for privacy level %s", q.PrivacyLevel)
		result.TotalTimeMs = time.Since(start).Milliseconds()
		log.Warn().Str("request_id", result.RequestID).Str("privacy", string(q.PrivacyLevel)).Msg("no eligible provider")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	req := llm.ChatRequest{Messages: BuildMessages(q.Feature, q.Query)}
	exec := r.executor.Execute(ctx, d, req)

	result.Response = exec.Response
	result.ProvidersAttempted = exec.Attempted
	if exec.Response.Success {
		result.ActualCost = ActualCost(r.byProvider[exec.Served.Provider], exec.Served.Model, exec.Response)
	}
	result.TotalTimeMs = time.Since(start).Milliseconds()

	if exec.Response.Success {
		r.recordUsage(ctx, q, result, exec.Served)
		log.Info().
			Str("request_id", result.RequestID).
			Str("provider", string(exec.Served.Provider)).
			Str("model", exec.Served.Model).
			Strs("attempted", result.ProvidersAttempted).
			Float64("cost", result.ActualCost).
			Int64("ms", result.TotalTimeMs).
			Msg("request routed")
	} else {
		log.Error().
			Str("request_id", result.RequestID).
			Strs("attempted", result.ProvidersAttempted).
			Str("error", result.Response.Error).
			Msg("all providers failed")
	}

	return result, nil
}

func (r *Router) recordUsage(ctx context.Context, q Query, result *RoutingResult, served Candidate) {
	var usage llm.Usage
	if result.Response.Usage != nil {
		usage = *result.Response.Usage
	}

	rec := r.tracker.Record(llm.UsageRecord{
		Provider:           served.Provider,
		Model:              served.Model,
		Feature:            string(q.Feature),
		PromptTokens:       usage.PromptTokens,
		CompletionTokens:   usage.CompletionTokens,
		Cost:               result.ActualCost,
		ProvidersAttempted: append([]string(nil), result.ProvidersAttempted...),
		Duration:           float64(result.TotalTimeMs),
	})

	if len(r.sinks) == 0 {
		return
	}

	// The request already succeeded; a cancelled caller should not drop the record
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, s := range r.sinks {
		if err := s.RecordUsage(sinkCtx, rec); err != nil {
			log.Warn().Err(err).Str("request_id", result.RequestID).Msg("failed to record usage")
		}
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= queryPreviewLn {
		return s
	}
	return string(runes[:queryPreviewLn]) + "..."
}
