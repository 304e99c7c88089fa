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

// Package memory assembles the working context the reasoning loop sees
// each turn: the slice of conversation history that fits the configured
// budget, plus a rolling summary of everything older.
//
// The session log itself is append-only and lives in pkg/session; this
// package never mutates it. Strategies read the full history and decide
// what the model gets to see.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/llms"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/utils"
)

// ============================================================================
// WORKING CONTEXT
// ============================================================================

// WorkingContext is the conversation state handed to the reasoning loop
// for one turn: the raw recent messages, the rolling summary of evicted
// history, and the token cost of the whole assembly.
type WorkingContext struct {
	Messages []llms.ChatMessage `json:"messages"`
	Summary  string             `json:"summary,omitempty"`
	Tokens   int                `json:"tokens"`
}

// Render flattens the working context into the text block the reasoning
// prompt embeds. Empty contexts render as "".
func (w *WorkingContext) Render() string {
	if w == nil || (w.Summary == "" && len(w.Messages) == 0) {
		return ""
	}
	var b strings.Builder
	if w.Summary != "" {
		b.WriteString("Summary of earlier conversation: ")
		b.WriteString(w.Summary)
		if len(w.Messages) > 0 {
			b.WriteString("\n")
		}
	}
	for i, msg := range w.Messages {
		if i > 0 || w.Summary != "" {
			b.WriteString("\n")
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

// ============================================================================
// STRATEGY
// ============================================================================

// Strategy builds the working context for a session turn.
type Strategy interface {
	// Assemble selects what the reasoning loop sees for this turn.
	// history is the full append-only session log; question is the
	// message being answered (counted against the budget, not included
	// in Messages).
	Assemble(ctx context.Context, sessionID string, history []model.Message, question string) (*WorkingContext, error)

	// Name returns the strategy identifier used in configuration.
	Name() string
}

// TokenCounter measures the token cost of a message list. Satisfied by
// utils.TokenCounter.
type TokenCounter interface {
	CountMessages(messages []utils.Message) int
}

// Recorder is called after each summary regeneration so the engine can
// append an audit record to the session log.
type Recorder func(ctx context.Context, sessionID, summary string) error

// conversational extracts the user and assistant turns from a session
// log. System and tool entries are audit records, not conversation.
func conversational(history []model.Message) []llms.ChatMessage {
	messages := make([]llms.ChatMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case model.RoleUser, model.RoleAssistant:
			messages = append(messages, llms.ChatMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}
	return messages
}

// ============================================================================
// FACTORY
// ============================================================================

// NewStrategyFromConfig builds the configured strategy. The provider is
// used for summarization and token counting; cache may be nil when no
// summary cache is configured.
func NewStrategyFromConfig(cfg config.MemoryConfig, provider llms.Provider, cache SummaryStore) (Strategy, error) {
	cfg.SetDefaults()

	switch cfg.Strategy {
	case config.MemoryStrategyBuffer:
		return NewBufferWindow(cfg.Window), nil

	case config.MemoryStrategySummary:
		if provider == nil {
			return nil, fmt.Errorf("summary memory strategy requires an LLM provider")
		}
		counter, err := utils.NewTokenCounter(provider.GetModelName())
		if err != nil {
			return nil, fmt.Errorf("failed to create token counter: %w", err)
		}
		summarizer, err := NewLLMSummarizer(provider, 0)
		if err != nil {
			return nil, err
		}
		return NewSummaryBuffer(SummaryBufferConfig{
			Budget:       cfg.TokenBudget,
			TriggerRatio: cfg.SummaryTriggerRatio,
			TargetRatio:  cfg.SummaryTargetRatio,
			RecentKeep:   cfg.RecentKeep,
			Counter:      counter,
			Summarizer:   summarizer,
			Cache:        cache,
		})

	default:
		return nil, fmt.Errorf("unknown memory strategy: %s", cfg.Strategy)
	}
}
