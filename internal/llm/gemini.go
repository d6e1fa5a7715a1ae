package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiBaseURL is the public Generative Language API endpoint
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements Adapter for the Gemini generateContent API
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pricing    PricingTable
}

// NewGeminiClient creates a Gemini adapter. An empty baseURL selects the public endpoint.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		pricing: pricingFor(ProviderGemini),
	}
}

func (c *GeminiClient) Name() Provider {
	return ProviderGemini
}

func (c *GeminiClient) DefaultModel() string {
	return c.pricing.DefaultModel
}

func (c *GeminiClient) CalculateCost(usage Usage, model string) float64 {
	return c.pricing.Cost(usage, model)
}

func (c *GeminiClient) ValidateKey(ctx context.Context) bool {
	return c.Chat(ctx, probeRequest()).Success
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// geminiContents converts canonical messages to Gemini contents. The API has
// no system role, so system text is folded into the first user turn and no
// system-role message is ever sent.
func geminiContents(messages []ChatMessage) []geminiContent {
	var system []string
	contents := make([]geminiContent, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	if len(system) == 0 {
		return contents
	}

	prefix := strings.Join(system, "\n\n")
	for i := range contents {
		if contents[i].Role == "user" {
			contents[i].Parts[0].Text = prefix + "\n\n" + contents[i].Parts[0].Text
			return contents
		}
	}

	// Only system text: send it as the user turn.
	return append([]geminiContent{{Role: "user", Parts: []geminiPart{{Text: prefix}}}}, contents...)
}

func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	if c.apiKey == "" {
		return Failed(KindAuth, "gemini: API key is required")
	}
	if err := req.Validate(); err != nil {
		return Failed(KindInvalidRequest, "gemini: %v", err)
	}

	model := req.Model
	if model == "" {
		model = c.pricing.DefaultModel
	}

	body, err := json.Marshal(geminiRequest{
		Contents: geminiContents(req.Messages),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     temperatureOrDefault(req.Temperature),
			MaxOutputTokens: maxTokensOrDefault(req.MaxTokens),
		},
	})
	if err != nil {
		return Failed(KindInvalidRequest, "gemini: failed to marshal request: %v", err)
	}

	endpoint := c.baseURL + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failed(KindInvalidRequest, "gemini: failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// url.Error embeds the full URL, which carries the key
		return Failed(kindForTransport(ctx, err), "gemini: request failed: %v", redactKey(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFailure(ProviderGemini, resp)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if ctx.Err() != nil {
			return Failed(kindForTransport(ctx, ctx.Err()), "gemini: decoding interrupted: %v", ctx.Err())
		}
		return Failed(KindMalformedResponse, "gemini: failed to decode response: %v", err)
	}

	return normalizeGemini(model, decoded)
}

// normalizeGemini maps a generateContent body onto ChatResponse
func normalizeGemini(requestedModel string, body geminiResponse) ChatResponse {
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return Failed(KindMalformedResponse, "gemini: response has no candidates")
	}
	content := body.Candidates[0].Content.Parts[0].Text
	if content == "" {
		return Failed(KindMalformedResponse, "gemini: response has empty content")
	}

	var usage Usage
	if body.UsageMetadata != nil {
		usage = NewUsage(body.UsageMetadata.PromptTokenCount, body.UsageMetadata.CandidatesTokenCount)
	}

	model := body.ModelVersion
	if model == "" {
		model = requestedModel
	}
	return Succeeded(content, model, usage)
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(key), MaskAPIKey(key))
	return strings.ReplaceAll(s, key, MaskAPIKey(key))
}

var _ Adapter = (*GeminiClient)(nil)
