package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaURL is where a local Ollama runtime listens by default
const DefaultOllamaURL = "http://localhost:11434"

// ollamaChatter is the slice of the Ollama client the adapter needs
type ollamaChatter interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
	List(ctx context.Context) (*ollama.ListResponse, error)
}

// OllamaClient implements Adapter for a local Ollama runtime. Nothing it sends
// leaves the device and every call is priced at zero.
type OllamaClient struct {
	baseURL string
	model   string
	client  ollamaChatter
	pricing PricingTable
}

// NewOllamaClient creates a local adapter. Empty arguments select the defaults.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", baseURL, err)
	}

	client := ollama.NewClient(u, &http.Client{Timeout: 5 * time.Minute}) // local generation can be slow
	return newOllamaClientWith(baseURL, model, client), nil
}

func newOllamaClientWith(baseURL, model string, client ollamaChatter) *OllamaClient {
	if model == "" {
		model = DefaultLocalModel
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  client,
		pricing: pricingFor(ProviderLocal),
	}
}

func (c *OllamaClient) Name() Provider {
	return ProviderLocal
}

func (c *OllamaClient) DefaultModel() string {
	return c.model
}

// CalculateCost is always zero for local inference
func (c *OllamaClient) CalculateCost(usage Usage, model string) float64 {
	return c.pricing.Cost(usage, model)
}

// ValidateKey confirms the runtime answers a minimal completion. The local
// runtime takes no key.
func (c *OllamaClient) ValidateKey(ctx context.Context) bool {
	return c.Chat(ctx, probeRequest()).Success
}

func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	if err := req.Validate(); err != nil {
		return Failed(KindInvalidRequest, "local: %v", err)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]ollama.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollama.Message{Role: string(m.Role), Content: m.Content})
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": temperatureOrDefault(req.Temperature),
			"num_predict": maxTokensOrDefault(req.MaxTokens),
		},
	}

	var (
		content strings.Builder
		final   ollama.ChatResponse
		done    bool
	)
	err := c.client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
			done = true
		}
		return nil
	})
	if err != nil {
		return ollamaFailure(ctx, err)
	}
	if !done {
		return Failed(KindMalformedResponse, "local: response ended before completion")
	}
	if content.Len() == 0 {
		return Failed(KindMalformedResponse, "local: response has empty content")
	}

	served := final.Model
	if served == "" {
		served = model
	}
	return Succeeded(content.String(), served, NewUsage(final.PromptEvalCount, final.EvalCount))
}

func ollamaFailure(ctx context.Context, err error) ChatResponse {
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		return Failed(kindForStatus(statusErr.StatusCode), "local: HTTP %d: %s", statusErr.StatusCode, statusErr.ErrorMessage)
	}
	return Failed(kindForTransport(ctx, err), "local: request failed: %v", err)
}

// ListModels returns the models installed in the local runtime
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local models: %w", err)
	}

	models := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = m.Name
	}
	return models, nil
}

var _ Adapter = (*OllamaClient)(nil)
