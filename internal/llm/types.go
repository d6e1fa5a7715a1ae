package llm

import (
	"context"
	"fmt"
)

// Role is the speaker of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the canonical request every adapter accepts.
// Model is optional; adapters fall back to their provider's default model.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Validate checks the request constraints shared by all adapters
func (r *ChatRequest) Validate() error {
	if r == nil || len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	return nil
}

// Usage holds token counts reported by a provider.
// Build it with NewUsage so TotalTokens always equals the sum of the parts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage builds a Usage, clamping negatives to zero and deriving the total
func NewUsage(promptTokens, completionTokens int) Usage {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// ChatResponse is the normalized result of one adapter call.
// Success implies Content is set and Error is empty; failure implies Error is set.
type ChatResponse struct {
	Success   bool      `json:"success"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
	Model     string    `json:"model,omitempty"`
}

// Succeeded builds a successful response
func Succeeded(content, model string, usage Usage) ChatResponse {
	return ChatResponse{
		Success: true,
		Content: content,
		Usage:   &usage,
		Model:   model,
	}
}

// Failed builds a failed response of the given kind
func Failed(kind ErrorKind, format string, args ...any) ChatResponse {
	return ChatResponse{
		Success:   false,
		Error:     fmt.Sprintf(format, args...),
		ErrorKind: kind,
	}
}

// Err returns nil for a successful response, otherwise an error wrapping the
// sentinel for the response's ErrorKind
func (r ChatResponse) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", r.ErrorKind.Sentinel(), r.Error)
}

// Adapter normalizes one provider's API into the canonical request and response
// types. Chat never returns an error: every failure becomes a failed ChatResponse.
// Adapters make exactly one outbound call per invocation and never retry.
type Adapter interface {
	Name() Provider
	Chat(ctx context.Context, req ChatRequest) ChatResponse
	CalculateCost(usage Usage, model string) float64
	ValidateKey(ctx context.Context) bool
	DefaultModel() string
}
