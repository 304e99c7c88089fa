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
	"sync"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/llms"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/utils"
)

// ============================================================================
// SUMMARY BUFFER STRATEGY
// ============================================================================

// minRecentKeep is the floor on raw messages retained through any
// compression. The newest exchange always survives verbatim.
const minRecentKeep = 3

// summaryPrefix frames the rolling summary when it is counted and
// rendered as part of the working context.
const summaryPrefix = "Previous conversation summary: "

// SummaryBuffer is the default strategy: raw messages are kept until
// the assembled context crosses the trigger ratio of the token budget,
// then the oldest raw messages are folded into a rolling summary until
// the context fits the target ratio. The newest RecentKeep messages are
// never folded.
//
// Folding is monotonic per session: each message is summarized at most
// once, and the summary state records how far into the conversation the
// summary reaches so restarts can resume from the cache.
type SummaryBuffer struct {
	budget     int
	trigger    float64
	target     float64
	keep       int
	counter    TokenCounter
	summarizer Summarizer
	cache      SummaryStore
	recorder   Recorder

	mu       sync.Mutex
	sessions map[string]*summaryState
}

// summaryState is the per-session rolling summary. covered counts the
// leading conversational messages already folded in.
type summaryState struct {
	mu      sync.Mutex
	summary string
	covered int
}

// SummaryBufferConfig configures the summary buffer strategy.
type SummaryBufferConfig struct {
	Budget       int
	TriggerRatio float64
	TargetRatio  float64
	RecentKeep   int

	Counter    TokenCounter
	Summarizer Summarizer

	// Cache persists summary state across restarts. Optional.
	Cache SummaryStore
}

// NewSummaryBuffer creates a summary buffer strategy.
func NewSummaryBuffer(cfg SummaryBufferConfig) (*SummaryBuffer, error) {
	if cfg.Budget <= 0 {
		cfg.Budget = 2000
	}
	if cfg.TriggerRatio <= 0 || cfg.TriggerRatio > 1 {
		cfg.TriggerRatio = 0.8
	}
	if cfg.TargetRatio <= 0 || cfg.TargetRatio > 1 {
		cfg.TargetRatio = 0.6
	}
	if cfg.RecentKeep < minRecentKeep {
		cfg.RecentKeep = 6
	}
	if cfg.TriggerRatio <= cfg.TargetRatio {
		return nil, fmt.Errorf("summary trigger ratio (%v) must exceed target ratio (%v)", cfg.TriggerRatio, cfg.TargetRatio)
	}
	if cfg.Counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}

	return &SummaryBuffer{
		budget:     cfg.Budget,
		trigger:    cfg.TriggerRatio,
		target:     cfg.TargetRatio,
		keep:       cfg.RecentKeep,
		counter:    cfg.Counter,
		summarizer: cfg.Summarizer,
		cache:      cfg.Cache,
		sessions:   make(map[string]*summaryState),
	}, nil
}

// Name returns the strategy identifier.
func (s *SummaryBuffer) Name() string {
	return config.MemoryStrategySummary
}

// SetRecorder installs the audit callback invoked after each summary
// regeneration.
func (s *SummaryBuffer) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// Assemble returns the rolling summary plus the raw messages not yet
// folded into it, compressing first if the context exceeds the trigger.
// Summarization failures degrade to window trimming for the turn rather
// than failing the research loop.
func (s *SummaryBuffer) Assemble(ctx context.Context, sessionID string, history []model.Message, question string) (*WorkingContext, error) {
	conv := conversational(history)

	state := s.state(ctx, sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.covered > len(conv) {
		// The log is shorter than the summary claims to cover: the
		// session was deleted and its id reused. Start over.
		slog.Warn("Summary state ahead of session history, resetting",
			"session_id", sessionID, "covered", state.covered, "history", len(conv))
		state.summary = ""
		state.covered = 0
	}
	raw := conv[state.covered:]

	if s.overTrigger(state.summary, raw, question) && len(raw) > s.keep {
		kept, err := s.compress(ctx, sessionID, state, raw, question)
		if err != nil {
			slog.Warn("Summary regeneration failed, trimming window for this turn",
				"session_id", sessionID, "error", err)
			kept = raw[len(raw)-s.keep:]
		}
		raw = kept
	}

	messages := append([]llms.ChatMessage(nil), raw...)
	return &WorkingContext{
		Messages: messages,
		Summary:  state.summary,
		Tokens:   s.tokens(state.summary, messages, question),
	}, nil
}

// state returns the session's summary state, seeding it from the cache
// on first sight.
func (s *SummaryBuffer) state(ctx context.Context, sessionID string) *summaryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		return st
	}

	st := &summaryState{}
	if s.cache != nil {
		cached, ok, err := s.cache.Load(ctx, sessionID)
		if err != nil {
			slog.Warn("Summary cache load failed, starting fresh",
				"session_id", sessionID, "error", err)
		} else if ok {
			st.summary = cached.Summary
			st.covered = cached.Covered
		}
	}
	s.sessions[sessionID] = st
	return st
}

// compress folds everything but the newest keep messages into the
// summary, then trims the kept window further if it still exceeds the
// target. Must be called with state.mu held.
func (s *SummaryBuffer) compress(ctx context.Context, sessionID string, state *summaryState, raw []llms.ChatMessage, question string) ([]llms.ChatMessage, error) {
	evicted := raw[:len(raw)-s.keep]
	kept := raw[len(raw)-s.keep:]

	summary, err := s.summarizer.Summarize(ctx, state.summary, evicted)
	if err != nil {
		return nil, err
	}

	state.summary = summary
	state.covered += len(evicted)

	targetTokens := int(float64(s.budget) * s.target)
	for len(kept) > minRecentKeep && s.tokens(summary, kept, question) > targetTokens {
		kept = kept[1:]
	}

	slog.Debug("Conversation compressed into rolling summary",
		"session_id", sessionID, "folded", len(evicted), "kept", len(kept), "covered", state.covered)

	if s.cache != nil {
		saveErr := s.cache.Save(ctx, sessionID, &CachedSummary{
			Summary:   state.summary,
			Covered:   state.covered,
			UpdatedAt: time.Now().UTC(),
		})
		if saveErr != nil {
			slog.Warn("Summary cache save failed", "session_id", sessionID, "error", saveErr)
		}
	}
	if s.recorder != nil {
		if recErr := s.recorder(ctx, sessionID, state.summary); recErr != nil {
			slog.Warn("Summary audit record failed", "session_id", sessionID, "error", recErr)
		}
	}

	return kept, nil
}

// overTrigger reports whether the assembled context crosses the trigger
// ratio of the budget.
func (s *SummaryBuffer) overTrigger(summary string, raw []llms.ChatMessage, question string) bool {
	return s.tokens(summary, raw, question) > int(float64(s.budget)*s.trigger)
}

// tokens measures summary + messages + question as the prompt will
// carry them.
func (s *SummaryBuffer) tokens(summary string, messages []llms.ChatMessage, question string) int {
	counted := make([]utils.Message, 0, len(messages)+2)
	if summary != "" {
		counted = append(counted, utils.Message{Role: llms.RoleSystem, Content: summaryPrefix + summary})
	}
	for _, msg := range messages {
		counted = append(counted, utils.Message{Role: msg.Role, Content: msg.Content})
	}
	if question != "" {
		counted = append(counted, utils.Message{Role: llms.RoleUser, Content: question})
	}
	return s.counter.CountMessages(counted)
}

var _ Strategy = (*SummaryBuffer)(nil)
