package routellm

import (
	"context"
	"time"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/rs/zerolog/log"
)

// DefaultAdapterTimeout bounds each adapter call
const DefaultAdapterTimeout = 30 * time.Second

// Execution is the outcome of walking a decision's candidates
type Execution struct {
	Response llm.ChatResponse
	// Served is the candidate whose response succeeded
	Served    Candidate
	Attempted []string
}

// Executor walks [primary] ++ fallbackChain strictly in order, one call at a
// time, stopping at the first success. There is no retry on the same
// provider; a failure always moves on to the next candidate.
type Executor struct {
	adapters      map[llm.Provider]llm.Adapter
	timeout       time.Duration
	abortOnCancel bool
}

// NewExecutor creates an executor over the registered adapters
func NewExecutor(adapters []llm.Adapter, timeout time.Duration, abortOnCancel bool) *Executor {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	byProvider := make(map[llm.Provider]llm.Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Name()] = a
	}
	return &Executor{
		adapters:      byProvider,
		timeout:       timeout,
		abortOnCancel: abortOnCancel,
	}
}

// Execute calls each candidate in turn. Every attempted provider is recorded,
// including the one that succeeds. When all fail, the last failure is
// returned verbatim. If abortOnCancel is set and ctx is done, the walk stops
// before the next candidate.
func (e *Executor) Execute(ctx context.Context, d RouteDecision, req llm.ChatRequest) Execution {
	candidates := d.Candidates()
	exec := Execution{Attempted: make([]string, 0, len(candidates))}
	last := llm.Failed(llm.KindProvider, "no candidates to attempt")

	for i, c := range candidates {
		if e.abortOnCancel && ctx.Err() != nil {
			log.Debug().Err(ctx.Err()).Int("remaining", len(candidates)-i).Msg("caller cancelled, aborting fallback chain")
			if i == 0 {
				last = llm.Failed(llm.KindCancelled, "request cancelled before any provider was attempted")
			}
			break
		}

		resp := e.attempt(ctx, c, req)
		exec.Attempted = append(exec.Attempted, string(c.Provider))

		if resp.Success {
			exec.Response = resp
			exec.Served = c
			log.Debug().
				Str("provider", string(c.Provider)).
				Str("model", c.Model).
				Int("attempt", i+1).
				Msg("provider succeeded")
			return exec
		}

		last = resp
		log.Warn().
			Str("provider", string(c.Provider)).
			Str("model", c.Model).
			Str("kind", string(resp.ErrorKind)).
			Str("error", resp.Error).
			Int("attempt", i+1).
			Int("candidates", len(candidates)).
			Msg("provider failed, trying next")
	}

	exec.Response = last
	return exec
}

// attempt makes one bounded adapter call. The deferred cancel releases the
// in-flight request as soon as the adapter returns.
func (e *Executor) attempt(ctx context.Context, c Candidate, req llm.ChatRequest) llm.ChatResponse {
	adapter, ok := e.adapters[c.Provider]
	if !ok {
		return llm.Failed(llm.KindProvider, "%s: provider not registered", c.Provider)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req.Model = c.Model
	resp := adapter.Chat(callCtx, req)

	if resp.Success && resp.Usage == nil {
		resp.Usage = &llm.Usage{}
	}
	if !resp.Success && resp.Error == "" {
		resp.Error = string(c.Provider) + ": unknown failure"
	}
	if !resp.Success && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		resp.ErrorKind = llm.KindTimeout
	}
	return resp
}
