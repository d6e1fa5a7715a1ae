package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	ollama "github.com/ollama/ollama/api"
)

// stubChatter replays canned chunks instead of talking to a runtime
type stubChatter struct {
	chunks  []ollama.ChatResponse
	err     error
	models  []string
	lastReq *ollama.ChatRequest
}

func (s *stubChatter) Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error {
	s.lastReq = req
	if s.err != nil {
		return s.err
	}
	for _, c := range s.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubChatter) List(ctx context.Context) (*ollama.ListResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	resp := &ollama.ListResponse{}
	for _, m := range s.models {
		resp.Models = append(resp.Models, ollama.ListModelResponse{Name: m})
	}
	return resp, nil
}

func doneChunk(content string, prompt, eval int) ollama.ChatResponse {
	resp := ollama.ChatResponse{
		Model:   "llama3.2:latest",
		Message: ollama.Message{Role: "assistant", Content: content},
		Done:    true,
	}
	resp.PromptEvalCount = prompt
	resp.EvalCount = eval
	return resp
}

func TestNewOllamaClient(t *testing.T) {
	client, err := NewOllamaClient("", "")
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	if client.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, DefaultOllamaURL)
	}
	if client.DefaultModel() != DefaultLocalModel {
		t.Errorf("DefaultModel() = %s, want %s", client.DefaultModel(), DefaultLocalModel)
	}
	if client.Name() != ProviderLocal {
		t.Errorf("Name() = %s, want local", client.Name())
	}
}

func TestNewOllamaClient_InvalidURL(t *testing.T) {
	if _, err := NewOllamaClient("://bad", ""); err == nil {
		t.Error("NewOllamaClient() should reject an invalid URL")
	}
}

func TestOllamaClient_Chat_Success(t *testing.T) {
	stub := &stubChatter{chunks: []ollama.ChatResponse{doneChunk("local answer", 30, 12)}}
	client := newOllamaClientWith("http://ollama:11434", "qwen2.5:7b", stub)

	resp := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
		},
		MaxTokens: 200,
	})

	if !resp.Success {
		t.Fatalf("Chat() failed: %s", resp.Error)
	}
	if resp.Content != "local answer" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 30 || resp.Usage.CompletionTokens != 12 || resp.Usage.TotalTokens != 42 {
		t.Errorf("Usage = %+v, want 30/12/42", resp.Usage)
	}
	if resp.Model != "llama3.2:latest" {
		t.Errorf("Model = %s, want served model", resp.Model)
	}

	req := stub.lastReq
	if req.Model != "qwen2.5:7b" {
		t.Errorf("request model = %s, want configured model", req.Model)
	}
	if req.Stream == nil || *req.Stream {
		t.Error("request should disable streaming")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.Options["num_predict"] != 200 {
		t.Errorf("num_predict = %v, want 200", req.Options["num_predict"])
	}
}

func TestOllamaClient_Chat_AccumulatesChunks(t *testing.T) {
	stub := &stubChatter{chunks: []ollama.ChatResponse{
		{Message: ollama.Message{Content: "Hel"}},
		{Message: ollama.Message{Content: "lo"}},
		doneChunk("", 3, 2),
	}}
	client := newOllamaClientWith("", "", stub)

	resp := client.Chat(context.Background(), userRequest("hi"))
	if !resp.Success || resp.Content != "Hello" {
		t.Errorf("Chat() = %+v, want Hello", resp)
	}
}

func TestOllamaClient_Chat_Failures(t *testing.T) {
	tests := []struct {
		name string
		stub *stubChatter
		kind ErrorKind
	}{
		{"model missing", &stubChatter{err: ollama.StatusError{StatusCode: http.StatusNotFound, ErrorMessage: "model not found"}}, KindProvider},
		{"runtime down", &stubChatter{err: errors.New("connection refused")}, KindNetwork},
		{"deadline", &stubChatter{err: context.DeadlineExceeded}, KindTimeout},
		{"never done", &stubChatter{chunks: []ollama.ChatResponse{{Message: ollama.Message{Content: "partial"}}}}, KindMalformedResponse},
		{"empty", &stubChatter{chunks: []ollama.ChatResponse{doneChunk("", 1, 0)}}, KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newOllamaClientWith("", "", tt.stub)
			resp := client.Chat(context.Background(), userRequest("hi"))
			if resp.Success {
				t.Fatal("Chat() should fail")
			}
			if resp.ErrorKind != tt.kind {
				t.Errorf("ErrorKind = %s, want %s", resp.ErrorKind, tt.kind)
			}
		})
	}
}

func TestOllamaClient_CalculateCostIsZero(t *testing.T) {
	client := newOllamaClientWith("", "", &stubChatter{})
	if got := client.CalculateCost(NewUsage(1_000_000, 1_000_000), "anything"); got != 0 {
		t.Errorf("CalculateCost() = %f, want 0", got)
	}
}

func TestOllamaClient_ValidateKey(t *testing.T) {
	up := newOllamaClientWith("", "", &stubChatter{chunks: []ollama.ChatResponse{doneChunk("pong", 1, 1)}})
	if !up.ValidateKey(context.Background()) {
		t.Error("ValidateKey() = false for a responsive runtime")
	}

	down := newOllamaClientWith("", "", &stubChatter{err: errors.New("dial tcp: refused")})
	if down.ValidateKey(context.Background()) {
		t.Error("ValidateKey() = true for an unreachable runtime")
	}
}

func TestOllamaClient_ListModels(t *testing.T) {
	client := newOllamaClientWith("", "", &stubChatter{models: []string{"llama3.2:latest", "qwen2.5:7b"}})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[1] != "qwen2.5:7b" {
		t.Errorf("ListModels() = %v", models)
	}
}
