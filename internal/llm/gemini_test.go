package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiContents(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		want     []geminiContent
	}{
		{
			name:     "user only",
			messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
			want:     []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "hi"}}}},
		},
		{
			name: "system folded into first user turn",
			messages: []ChatMessage{
				{Role: RoleSystem, Content: "be kind"},
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
				{Role: RoleUser, Content: "again"},
			},
			want: []geminiContent{
				{Role: "user", Parts: []geminiPart{{Text: "be kind\n\nhi"}}},
				{Role: "model", Parts: []geminiPart{{Text: "hello"}}},
				{Role: "user", Parts: []geminiPart{{Text: "again"}}},
			},
		},
		{
			name:     "system only becomes user turn",
			messages: []ChatMessage{{Role: RoleSystem, Content: "rules"}},
			want:     []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "rules"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geminiContents(tt.messages)
			assert.Equal(t, tt.want, got)
			for _, c := range got {
				assert.NotEqual(t, "system", c.Role)
			}
		})
	}
}

func TestGeminiClient_Chat_Success(t *testing.T) {
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "AIza-test", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Paris"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 2, "totalTokenCount": 10}
		}`))
	}))
	defer server.Close()

	client := NewGeminiClient("AIza-test", server.URL)
	resp := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "answer tersely"},
			{Role: RoleUser, Content: "Capital of France?"},
		},
		MaxTokens: 32,
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Paris", resp.Content)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, Usage{8, 2, 10}, *resp.Usage)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "answer tersely\n\nCapital of France?", got.Contents[0].Parts[0].Text)
	assert.Equal(t, 32, got.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, defaultTemperature, got.GenerationConfig.Temperature)
}

func TestGeminiClient_Chat_ModelVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-pro:generateContent", r.URL.Path)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}], "modelVersion": "gemini-1.5-pro-002"}`))
	}))
	defer server.Close()

	req := userRequest("hi")
	req.Model = "gemini-1.5-pro"
	resp := NewGeminiClient("AIza-test", server.URL).Chat(context.Background(), req)

	require.True(t, resp.Success)
	assert.Equal(t, "gemini-1.5-pro-002", resp.Model)
}

func TestGeminiClient_Chat_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": {"status": "RESOURCE_EXHAUSTED"}}`, KindRateLimited},
		{"bad key", http.StatusForbidden, `{"error": {"status": "PERMISSION_DENIED"}}`, KindAuth},
		{"no candidates", http.StatusOK, `{"candidates": []}`, KindMalformedResponse},
		{"no parts", http.StatusOK, `{"candidates": [{"content": {"parts": []}}]}`, KindMalformedResponse},
		{"garbage", http.StatusOK, `not json`, KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp := NewGeminiClient("AIza-test", server.URL).Chat(context.Background(), userRequest("hi"))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.kind, resp.ErrorKind)
		})
	}
}

func TestGeminiClient_Chat_TransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	key := "AIzaSyVerySecretKeyValue1234567890"
	resp := NewGeminiClient(key, url).Chat(context.Background(), userRequest("hi"))

	assert.False(t, resp.Success)
	assert.Equal(t, KindNetwork, resp.ErrorKind)
	assert.NotContains(t, resp.Error, key)
}

func TestGeminiClient_EmptyKey(t *testing.T) {
	client := NewGeminiClient("", "")
	assert.Equal(t, GeminiBaseURL, client.baseURL)

	resp := client.Chat(context.Background(), userRequest("hi"))
	assert.Equal(t, KindAuth, resp.ErrorKind)
}

func TestGeminiClient_CalculateCost(t *testing.T) {
	client := NewGeminiClient("k", "")
	usage := NewUsage(2_000_000, 1_000_000)

	assert.InDelta(t, 0.15+0.30, client.CalculateCost(usage, "gemini-1.5-flash"), 1e-9)
	assert.InDelta(t, 2.5+5, client.CalculateCost(usage, "gemini-1.5-pro"), 1e-9)
}
