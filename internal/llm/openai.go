package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Base URLs of the OpenAI-compatible providers
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	XAIBaseURL        = "https://api.x.ai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
	validateMaxTokens  = 5
	errorBodyLimit     = 1024
)

// OpenAICompatClient implements Adapter for any backend that speaks the
// OpenAI chat completions protocol. The OpenAI, xAI and OpenRouter adapters
// differ only in provider, base URL and pricing table.
type OpenAICompatClient struct {
	provider   Provider
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pricing    PricingTable
}

// NewOpenAICompatClient creates an adapter for an OpenAI-compatible provider.
// An empty baseURL selects the provider's public endpoint.
func NewOpenAICompatClient(provider Provider, apiKey, baseURL string) *OpenAICompatClient {
	if baseURL == "" {
		baseURL = defaultCompatBaseURL(provider)
	}
	return &OpenAICompatClient{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		pricing: pricingFor(provider),
	}
}

// NewOpenAIClient creates the OpenAI adapter
func NewOpenAIClient(apiKey, baseURL string) *OpenAICompatClient {
	return NewOpenAICompatClient(ProviderOpenAI, apiKey, baseURL)
}

// NewXAIClient creates the xAI adapter
func NewXAIClient(apiKey, baseURL string) *OpenAICompatClient {
	return NewOpenAICompatClient(ProviderXAI, apiKey, baseURL)
}

// NewOpenRouterClient creates the unified multi-model adapter
func NewOpenRouterClient(apiKey, baseURL string) *OpenAICompatClient {
	return NewOpenAICompatClient(ProviderOpenRouter, apiKey, baseURL)
}

func defaultCompatBaseURL(p Provider) string {
	switch p {
	case ProviderXAI:
		return XAIBaseURL
	case ProviderOpenRouter:
		return OpenRouterBaseURL
	default:
		return OpenAIBaseURL
	}
}

func (c *OpenAICompatClient) Name() Provider {
	return c.provider
}

func (c *OpenAICompatClient) DefaultModel() string {
	return c.pricing.DefaultModel
}

func (c *OpenAICompatClient) CalculateCost(usage Usage, model string) float64 {
	return c.pricing.Cost(usage, model)
}

func (c *OpenAICompatClient) ValidateKey(ctx context.Context) bool {
	return c.Chat(ctx, probeRequest()).Success
}

// openAIRequest is the chat completions request body
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse is the chat completions response body
type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompatClient) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	if c.apiKey == "" {
		return Failed(KindAuth, "%s: API key is required", c.provider)
	}
	if err := req.Validate(); err != nil {
		return Failed(KindInvalidRequest, "%s: %v", c.provider, err)
	}

	model := req.Model
	if model == "" {
		model = c.pricing.DefaultModel
	}

	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	// Streaming is not supported; the body always asks for a single response.
	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperatureOrDefault(req.Temperature),
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Stream:      false,
	})
	if err != nil {
		return Failed(KindInvalidRequest, "%s: failed to marshal request: %v", c.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Failed(KindInvalidRequest, "%s: failed to create request: %v", c.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Failed(kindForTransport(ctx, err), "%s: request failed: %v", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(c.provider, resp)
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if ctx.Err() != nil {
			return Failed(kindForTransport(ctx, ctx.Err()), "%s: decoding interrupted: %v", c.provider, ctx.Err())
		}
		return Failed(KindMalformedResponse, "%s: failed to decode response: %v", c.provider, err)
	}

	return normalizeOpenAI(c.provider, model, decoded)
}

// normalizeOpenAI maps a chat completions body onto ChatResponse
func normalizeOpenAI(provider Provider, requestedModel string, body openAIResponse) ChatResponse {
	if len(body.Choices) == 0 {
		return Failed(KindMalformedResponse, "%s: response has no choices", provider)
	}
	content := body.Choices[0].Message.Content
	if content == "" {
		return Failed(KindMalformedResponse, "%s: response has empty content", provider)
	}

	var usage Usage
	if body.Usage != nil {
		usage = NewUsage(body.Usage.PromptTokens, body.Usage.CompletionTokens)
	}

	model := body.Model
	if model == "" {
		model = requestedModel
	}
	return Succeeded(content, model, usage)
}

// statusFailure turns a non-200 response into a failed ChatResponse, keeping
// at most errorBodyLimit bytes of the body for the message
func statusFailure(provider Provider, resp *http.Response) ChatResponse {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return Failed(kindForStatus(resp.StatusCode), "%s: HTTP %d: %s",
		provider, resp.StatusCode, sanitizeErrorBody(strings.TrimSpace(string(bodyBytes))))
}

// probeRequest is the minimal completion used to confirm a key works
func probeRequest() ChatRequest {
	zero := 0.0
	return ChatRequest{
		Messages:    []ChatMessage{{Role: RoleUser, Content: "ping"}},
		Temperature: &zero,
		MaxTokens:   validateMaxTokens,
	}
}

func temperatureOrDefault(t *float64) float64 {
	if t == nil {
		return defaultTemperature
	}
	return *t
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

// ensure interface compliance
var _ Adapter = (*OpenAICompatClient)(nil)

// String identifies the adapter in log lines
func (c *OpenAICompatClient) String() string {
	return fmt.Sprintf("%s(%s)", c.provider, c.baseURL)
}
