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

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/utils"
)

// ============================================================================
// BUFFER WINDOW STRATEGY
// ============================================================================

// BufferWindow keeps the last N conversation messages and never
// summarizes. Suited to short sessions where losing old turns is
// acceptable.
type BufferWindow struct {
	window int
}

// NewBufferWindow creates a buffer window strategy. A non-positive
// window falls back to the configured default.
func NewBufferWindow(window int) *BufferWindow {
	if window <= 0 {
		window = 20
	}
	return &BufferWindow{window: window}
}

// Name returns the strategy identifier.
func (s *BufferWindow) Name() string {
	return config.MemoryStrategyBuffer
}

// Assemble returns the newest messages within the window.
func (s *BufferWindow) Assemble(ctx context.Context, sessionID string, history []model.Message, question string) (*WorkingContext, error) {
	messages := conversational(history)
	if len(messages) > s.window {
		messages = messages[len(messages)-s.window:]
	}

	tokens := utils.EstimateTokens(question)
	for _, msg := range messages {
		tokens += utils.EstimateTokens(msg.Content)
	}

	return &WorkingContext{Messages: messages, Tokens: tokens}, nil
}

var _ Strategy = (*BufferWindow)(nil)
