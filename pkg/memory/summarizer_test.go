package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxis/scout/pkg/llms"
)

// cannedProvider returns scripted replies in order.
type cannedProvider struct {
	replies []string
	err     error
	calls   int
	prompts []string
}

func (p *cannedProvider) Generate(ctx context.Context, messages []llms.ChatMessage) (string, llms.Usage, error) {
	p.calls++
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}
	if p.err != nil {
		return "", llms.Usage{}, p.err
	}
	reply := ""
	if p.calls-1 < len(p.replies) {
		reply = p.replies[p.calls-1]
	}
	return reply, llms.Usage{}, nil
}

func (p *cannedProvider) GenerateStreaming(ctx context.Context, messages []llms.ChatMessage) (<-chan llms.StreamChunk, error) {
	return nil, errors.New("not scripted")
}

func (p *cannedProvider) GetModelName() string { return "canned" }

func (p *cannedProvider) Close() error { return nil }

func TestLLMSummarizer_InitialSummary(t *testing.T) {
	provider := &cannedProvider{replies: []string{"  The user asked about sorting.  "}}
	summarizer, err := NewLLMSummarizer(provider, 0)
	require.NoError(t, err)

	summary, err := summarizer.Summarize(context.Background(), "", []llms.ChatMessage{
		{Role: "user", Content: "What is the fastest sort?"},
		{Role: "assistant", Content: "It depends on the data."},
	})
	require.NoError(t, err)

	assert.Equal(t, "The user asked about sorting.", summary)
	require.Equal(t, 1, provider.calls)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "user: What is the fastest sort?")
	assert.Contains(t, prompt, "assistant: It depends on the data.")
	assert.Contains(t, prompt, "Summary:")
	assert.NotContains(t, prompt, "Current summary:")
}

func TestLLMSummarizer_ProgressiveUpdate(t *testing.T) {
	provider := &cannedProvider{replies: []string{"updated summary"}}
	summarizer, err := NewLLMSummarizer(provider, 0)
	require.NoError(t, err)

	summary, err := summarizer.Summarize(context.Background(), "prior recap", []llms.ChatMessage{
		{Role: "user", Content: "tell me more"},
	})
	require.NoError(t, err)

	assert.Equal(t, "updated summary", summary)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "Current summary:")
	assert.Contains(t, prompt, "prior recap")
	assert.Contains(t, prompt, "New lines of conversation:")
	assert.Contains(t, prompt, "user: tell me more")
}

func TestLLMSummarizer_NothingToFold(t *testing.T) {
	provider := &cannedProvider{}
	summarizer, err := NewLLMSummarizer(provider, 0)
	require.NoError(t, err)

	summary, err := summarizer.Summarize(context.Background(), "keep me", nil)
	require.NoError(t, err)
	assert.Equal(t, "keep me", summary)
	assert.Equal(t, 0, provider.calls, "no provider call without new content")

	// Messages with empty content fold to nothing as well.
	summary, err = summarizer.Summarize(context.Background(), "keep me", []llms.ChatMessage{{Role: "user"}})
	require.NoError(t, err)
	assert.Equal(t, "keep me", summary)
	assert.Equal(t, 0, provider.calls)
}

func TestLLMSummarizer_PrunesOversizedSummary(t *testing.T) {
	long := strings.Repeat("verbose ", 10) // 80 chars, over the 40 char bound
	provider := &cannedProvider{replies: []string{long, "terse recap"}}
	summarizer, err := NewLLMSummarizer(provider, 40)
	require.NoError(t, err)

	summary, err := summarizer.Summarize(context.Background(), "", []llms.ChatMessage{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "terse recap", summary)
	require.Equal(t, 2, provider.calls)
	assert.Contains(t, provider.prompts[1], "grown too long")
}

func TestLLMSummarizer_ProviderFailure(t *testing.T) {
	provider := &cannedProvider{err: errors.New("backend down")}
	summarizer, err := NewLLMSummarizer(provider, 0)
	require.NoError(t, err)

	_, err = summarizer.Summarize(context.Background(), "", []llms.ChatMessage{
		{Role: "user", Content: "hi"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarization failed")
}

func TestLLMSummarizer_RequiresProvider(t *testing.T) {
	_, err := NewLLMSummarizer(nil, 0)
	require.Error(t, err)
}

func TestSummaryKeyFormat(t *testing.T) {
	assert.Equal(t, "scout:summary:abc-123", summaryKey("abc-123"))
}
