// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veraxis/scout/pkg/llms"
)

// ============================================================================
// SUMMARIZER
// ============================================================================

// Summarizer folds evicted messages into a rolling summary. Pure with
// respect to state: prior summary and evicted messages in, new summary
// out.
type Summarizer interface {
	Summarize(ctx context.Context, prior string, evicted []llms.ChatMessage) (string, error)
}

// defaultMaxSummaryChars bounds the rolling summary. A summary that
// outgrows the bound is re-summarized.
const defaultMaxSummaryChars = 1000

const initialSummaryTemplate = `Summarize the following conversation in about %d characters. Preserve key facts, names, dates, numbers, and decisions. Write in a neutral, factual tone and do not add information that is not present in the conversation.

%s

Summary:`

const updateSummaryTemplate = `Progressively summarize the conversation by folding the new lines into the current summary. Keep the result to about %d characters. Preserve key facts, names, dates, numbers, and decisions. Do not add information that is not present.

Current summary:
%s

New lines of conversation:
%s

New summary:`

const pruneSummaryTemplate = `The following conversation summary has grown too long. Provide a more concise summary that captures the key points and context in about %d characters:

%s

Concise summary:`

// LLMSummarizer generates summaries through a chat provider.
type LLMSummarizer struct {
	provider llms.Provider
	maxChars int
}

// NewLLMSummarizer creates an LLM-backed summarizer. maxChars bounds the
// summary length; non-positive uses the default.
func NewLLMSummarizer(provider llms.Provider, maxChars int) (*LLMSummarizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required for summarization")
	}
	if maxChars <= 0 {
		maxChars = defaultMaxSummaryChars
	}
	return &LLMSummarizer{provider: provider, maxChars: maxChars}, nil
}

// Summarize folds evicted messages into the prior summary. With nothing
// to fold, the prior summary passes through untouched.
func (s *LLMSummarizer) Summarize(ctx context.Context, prior string, evicted []llms.ChatMessage) (string, error) {
	conversation := renderConversation(evicted)
	if conversation == "" {
		return prior, nil
	}

	var prompt string
	if prior == "" {
		prompt = fmt.Sprintf(initialSummaryTemplate, s.maxChars/2, conversation)
	} else {
		prompt = fmt.Sprintf(updateSummaryTemplate, s.maxChars/2, prior, conversation)
	}

	summary, err := s.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	if len(summary) > s.maxChars {
		pruned, pruneErr := s.generate(ctx, fmt.Sprintf(pruneSummaryTemplate, s.maxChars/2, summary))
		if pruneErr != nil {
			// Pruning is cosmetic; an oversized summary still works.
			slog.Warn("Summary pruning failed, keeping long summary", "length", len(summary), "error", pruneErr)
			return summary, nil
		}
		summary = pruned
	}

	return summary, nil
}

func (s *LLMSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	reply, _, err := s.provider.Generate(ctx, []llms.ChatMessage{
		{Role: llms.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func renderConversation(messages []llms.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ Summarizer = (*LLMSummarizer)(nil)
