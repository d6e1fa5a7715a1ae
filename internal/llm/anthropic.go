package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// AnthropicBaseURL is the public Messages API endpoint
const AnthropicBaseURL = "https://api.anthropic.com/v1"

const anthropicVersion = "2023-06-01"

// AnthropicClient implements Adapter for the Anthropic Messages API
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pricing    PricingTable
}

// NewAnthropicClient creates a new Anthropic adapter
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		pricing: pricingFor(ProviderAnthropic),
	}
}

func (c *AnthropicClient) Name() Provider {
	return ProviderAnthropic
}

func (c *AnthropicClient) DefaultModel() string {
	return c.pricing.DefaultModel
}

func (c *AnthropicClient) CalculateCost(usage Usage, model string) float64 {
	return c.pricing.Cost(usage, model)
}

func (c *AnthropicClient) ValidateKey(ctx context.Context) bool {
	return c.Chat(ctx, probeRequest()).Success
}

// anthropicRequest represents the Anthropic API request format
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the Anthropic API response format
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	if c.apiKey == "" {
		return Failed(KindAuth, "anthropic: API key is required")
	}
	if err := req.Validate(); err != nil {
		return Failed(KindInvalidRequest, "anthropic: %v", err)
	}

	model := req.Model
	if model == "" {
		model = c.pricing.DefaultModel
	}

	// System turns travel in the top-level system field
	var system []string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		messages = append(messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(messages) == 0 {
		return Failed(KindInvalidRequest, "anthropic: at least one user message is required")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		System:      strings.Join(system, "\n\n"),
		Messages:    messages,
		Temperature: temperatureOrDefault(req.Temperature),
	})
	if err != nil {
		return Failed(KindInvalidRequest, "anthropic: failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return Failed(KindInvalidRequest, "anthropic: failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Failed(kindForTransport(ctx, err), "anthropic: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(ProviderAnthropic, resp)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if ctx.Err() != nil {
			return Failed(kindForTransport(ctx, ctx.Err()), "anthropic: decoding interrupted: %v", ctx.Err())
		}
		return Failed(KindMalformedResponse, "anthropic: failed to decode response: %v", err)
	}

	return normalizeAnthropic(model, decoded)
}

// normalizeAnthropic concatenates the text blocks of a Messages response
func normalizeAnthropic(requestedModel string, body anthropicResponse) ChatResponse {
	var content strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return Failed(KindMalformedResponse, "anthropic: response has no text content")
	}

	var usage Usage
	if body.Usage != nil {
		usage = NewUsage(body.Usage.InputTokens, body.Usage.OutputTokens)
	}

	model := body.Model
	if model == "" {
		model = requestedModel
	}
	return Succeeded(content.String(), model, usage)
}

var _ Adapter = (*AnthropicClient)(nil)
