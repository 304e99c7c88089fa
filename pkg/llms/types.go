// Package llms implements the chat completion providers the reasoning
// engine generates with: OpenAI, Anthropic, Gemini, and Ollama.
package llms

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one unit of a streaming completion.
type StreamChunk struct {
	Type  string // "text", "done", "error"
	Text  string
	Usage Usage
	Error error
}

// Provider is a chat completion backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate produces a full completion for the conversation.
	Generate(ctx context.Context, messages []ChatMessage) (string, Usage, error)

	// GenerateStreaming produces a completion incrementally. The channel
	// is closed after a "done" or "error" chunk.
	GenerateStreaming(ctx context.Context, messages []ChatMessage) (<-chan StreamChunk, error)

	// GetModelName returns the configured model identifier.
	GetModelName() string

	// Close releases provider resources.
	Close() error
}

// splitSystem separates the leading system messages from the rest of
// the conversation. Anthropic and Gemini take the system prompt out of
// band.
func splitSystem(messages []ChatMessage) (string, []ChatMessage) {
	system := ""
	rest := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
