package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veraxis/scout/pkg/config"
)

func ollamaTestConfig(baseURL string) config.LLMConfig {
	cfg := config.LLMConfig{
		Provider: config.LLMProviderOllama,
		Model:    "llama3.2",
		BaseURL:  baseURL,
	}
	cfg.SetDefaults()
	return cfg
}

func TestNewOllamaProvider_Defaults(t *testing.T) {
	provider, err := NewOllamaProvider(config.LLMConfig{Provider: config.LLMProviderOllama, Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	if provider.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %v, want default localhost", provider.baseURL)
	}

	provider, err = NewOllamaProvider(config.LLMConfig{
		Provider: config.LLMProviderOllama,
		Model:    "llama3.2",
		BaseURL:  "http://ollama:11434/",
	})
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	if provider.baseURL != "http://ollama:11434" {
		t.Errorf("baseURL = %v, want trailing slash trimmed", provider.baseURL)
	}
}

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("Expected model llama3.2, got %s", req.Model)
		}
		if req.Stream {
			t.Error("Expected stream=false for non-streaming request")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Expected system role passed through, got %+v", req.Messages)
		}
		if req.Options == nil || req.Options.NumPredict != 4096 {
			t.Errorf("Expected num_predict from config, got %+v", req.Options)
		}

		response := ollamaResponse{
			Model: "llama3.2",
			Message: ollamaMessage{
				Role:    "assistant",
				Content: "Hello! How can I help you today?",
			},
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       15,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}

	messages := []ChatMessage{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Hello"},
	}

	text, usage, err := provider.Generate(context.Background(), messages)
	if err != nil {
		t.Fatalf("Generate() error = %v, want nil", err)
	}
	if text != "Hello! How can I help you today?" {
		t.Errorf("Generate() text = %q, want greeting", text)
	}
	if usage.TotalTokens != 25 {
		t.Errorf("Generate() usage total = %d, want 25", usage.TotalTokens)
	}
}

func TestOllamaProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'missing' not found"}`)
	}))
	defer server.Close()

	cfg := ollamaTestConfig(server.URL)
	cfg.MaxRetries = 0
	provider, err := NewOllamaProvider(cfg)
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}

	_, _, err = provider.Generate(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Generate() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Generate() error = %v, want model not found details", err)
	}
}

func TestOllamaProvider_GenerateStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true for streaming request")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`+"\n")
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`+"\n")
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":10,"eval_count":2}`+"\n")
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}

	chunks, err := provider.GenerateStreaming(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var text strings.Builder
	var doneUsage Usage
	sawDone := false
	for chunk := range chunks {
		switch chunk.Type {
		case "text":
			text.WriteString(chunk.Text)
		case "done":
			sawDone = true
			doneUsage = chunk.Usage
		case "error":
			t.Fatalf("unexpected error chunk: %v", chunk.Error)
		}
	}

	if text.String() != "Hello" {
		t.Errorf("streamed text = %q, want Hello", text.String())
	}
	if !sawDone {
		t.Error("expected a done chunk")
	}
	if doneUsage.PromptTokens != 10 || doneUsage.CompletionTokens != 2 {
		t.Errorf("done usage = %+v, want 10/2", doneUsage)
	}
}

func TestOllamaProvider_GetModelName(t *testing.T) {
	provider, err := NewOllamaProvider(ollamaTestConfig(""))
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	if provider.GetModelName() != "llama3.2" {
		t.Errorf("GetModelName() = %v, want llama3.2", provider.GetModelName())
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
