package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsage(t *testing.T) {
	tests := []struct {
		name       string
		prompt     int
		completion int
		want       Usage
	}{
		{"both positive", 10, 20, Usage{10, 20, 30}},
		{"zero", 0, 0, Usage{0, 0, 0}},
		{"negative prompt clamped", -5, 7, Usage{0, 7, 7}},
		{"negative completion clamped", 3, -1, Usage{3, 0, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUsage(tt.prompt, tt.completion)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.PromptTokens+got.CompletionTokens, got.TotalTokens)
		})
	}
}

func TestChatRequest_Validate(t *testing.T) {
	var nilReq *ChatRequest
	assert.ErrorIs(t, nilReq.Validate(), ErrInvalidRequest)

	empty := &ChatRequest{}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidRequest)

	ok := &ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}}
	assert.NoError(t, ok.Validate())
}

func TestSucceeded(t *testing.T) {
	resp := Succeeded("hello", "gpt-4o-mini", NewUsage(1, 2))

	assert.True(t, resp.Success)
	assert.Equal(t, "hello", resp.Content)
	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
	assert.NoError(t, resp.Err())
}

func TestFailed(t *testing.T) {
	resp := Failed(KindRateLimited, "HTTP %d", 429)

	assert.False(t, resp.Success)
	assert.Equal(t, "HTTP 429", resp.Error)
	assert.Empty(t, resp.Content)
	assert.Equal(t, KindRateLimited, resp.ErrorKind)
	assert.ErrorIs(t, resp.Err(), ErrRateLimited)
}

func TestErrorKind_Sentinel(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want error
	}{
		{KindAuth, ErrAuth},
		{KindRateLimited, ErrRateLimited},
		{KindTimeout, ErrTimeout},
		{KindMalformedResponse, ErrMalformedResponse},
		{KindNetwork, ErrNetwork},
		{KindProvider, ErrProvider},
		{KindInvalidRequest, ErrInvalidRequest},
		{KindCancelled, ErrCancelled},
		{ErrorKind("something-else"), ErrProvider},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, errors.Is(tt.kind.Sentinel(), tt.want))
		})
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, kindForStatus(401))
	assert.Equal(t, KindAuth, kindForStatus(403))
	assert.Equal(t, KindRateLimited, kindForStatus(429))
	assert.Equal(t, KindTimeout, kindForStatus(504))
	assert.Equal(t, KindProvider, kindForStatus(500))
	assert.Equal(t, KindProvider, kindForStatus(400))
}

func TestSanitizeErrorBody(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no secrets", "Error: invalid request format", "Error: invalid request format"},
		{"anthropic key", "Error: invalid API key sk-ant-abc123xyz789-test", "Error: invalid API key [REDACTED]"},
		{"openai key", "Error: key sk-abcdefghij1234567890xyz", "Error: key [REDACTED]"},
		{"short sk is kept", "Error: sk-short", "Error: sk-short"},
		{"x-api-key field", `{"error": "bad request", "x-api-key": "secret-key-value"}`, `{"error": "bad request", [REDACTED]}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeErrorBody(tt.input))
		})
	}
}
