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

func anthropicTestConfig(baseURL string) config.LLMConfig {
	cfg := config.LLMConfig{
		Provider: config.LLMProviderAnthropic,
		Model:    "claude-sonnet-4-20250514",
		APIKey:   "test-key",
		BaseURL:  baseURL,
	}
	cfg.SetDefaults()
	return cfg
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	_, err := NewAnthropicProvider(config.LLMConfig{Provider: config.LLMProviderAnthropic, Model: "claude-sonnet-4-20250514"})
	if err == nil {
		t.Error("NewAnthropicProvider() error = nil, want error for missing API key")
	}
}

func TestAnthropicProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected /v1/messages, got %s", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", key)
		}
		if version := r.Header.Get("anthropic-version"); version != "2023-06-01" {
			t.Errorf("Expected anthropic-version 2023-06-01, got %s", version)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.System != "You are a researcher." {
			t.Errorf("Expected system prompt in top-level field, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("Expected single user message, got %+v", req.Messages)
		}
		if req.MaxTokens <= 0 {
			t.Errorf("Expected positive max_tokens, got %d", req.MaxTokens)
		}

		response := anthropicResponse{
			ID:   "msg_01",
			Type: "message",
			Role: "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Found "},
				{Type: "text", Text: "three sources."},
			},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 20, OutputTokens: 8},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(anthropicTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	messages := []ChatMessage{
		{Role: RoleSystem, Content: "You are a researcher."},
		{Role: RoleUser, Content: "Find sources."},
	}

	text, usage, err := provider.Generate(context.Background(), messages)
	if err != nil {
		t.Fatalf("Generate() error = %v, want nil", err)
	}
	if text != "Found three sources." {
		t.Errorf("Generate() text = %q, want concatenated text blocks", text)
	}
	if usage.PromptTokens != 20 || usage.CompletionTokens != 8 || usage.TotalTokens != 28 {
		t.Errorf("Generate() usage = %+v, want 20/8/28", usage)
	}
}

func TestAnthropicProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := anthropicResponse{
			Type:  "error",
			Error: &anthropicError{Type: "invalid_request_error", Message: "max_tokens required"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(anthropicTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	_, _, err = provider.Generate(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Generate() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("Generate() error = %v, want API error details", err)
	}
}

func TestAnthropicProvider_GenerateStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true for streaming request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":15}}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":4}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(anthropicTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
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

	if text.String() != "Hello there" {
		t.Errorf("streamed text = %q, want Hello there", text.String())
	}
	if !sawDone {
		t.Error("expected a done chunk")
	}
	if doneUsage.PromptTokens != 15 || doneUsage.CompletionTokens != 4 {
		t.Errorf("done usage = %+v, want 15/4", doneUsage)
	}
}

func TestAnthropicProvider_GetModelName(t *testing.T) {
	provider, err := NewAnthropicProvider(anthropicTestConfig(""))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}
	if provider.GetModelName() != "claude-sonnet-4-20250514" {
		t.Errorf("GetModelName() = %v, want claude-sonnet-4-20250514", provider.GetModelName())
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
