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

// Package model defines the core data types of the research agent:
// sessions, messages, reasoning chains, tool invocations, documents,
// chunks, and evidence items.
//
// Types here are plain data. Messages are immutable once appended to a
// session; chunks are immutable once embedded; evidence items are
// ephemeral retrieval output and never persisted.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// SESSION
// ============================================================================

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	SessionPlanning      SessionStatus = "planning"
	SessionRunning       SessionStatus = "running"
	SessionAwaitingInput SessionStatus = "awaiting_input"
	SessionCompleted     SessionStatus = "completed"
	SessionFailed        SessionStatus = "failed"
)

// IsTerminal reports whether the status is final. Terminal sessions reject
// further messages and status changes.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Valid reports whether s is a known status value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPlanning, SessionRunning, SessionAwaitingInput, SessionCompleted, SessionFailed:
		return true
	}
	return false
}

// ResearchSession is one research conversation: an ordered, append-only
// sequence of messages plus any artifacts the agent produced.
type ResearchSession struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Topic         string        `json:"topic"`
	Status        SessionStatus `json:"status"`
	Messages      []Message     `json:"messages"`
	Artifacts     []Artifact    `json:"artifacts,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewSession creates a session in the planning state.
func NewSession(userID, topic string) *ResearchSession {
	now := time.Now().UTC()
	return &ResearchSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Topic:     topic,
		Status:    SessionPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a deep copy safe to hand across goroutine boundaries.
func (s *ResearchSession) Snapshot() *ResearchSession {
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	for i := range s.Messages {
		cp.Messages[i] = *s.Messages[i].Clone()
	}
	cp.Artifacts = append([]Artifact(nil), s.Artifacts...)
	return &cp
}

// Artifact is a generated output attached to a session (report, file).
type Artifact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Content   []byte `json:"content"`
}

// ============================================================================
// MESSAGE
// ============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Message is one entry in a session's history. Immutable once appended:
// the engine appends new messages rather than editing history, which is
// what keeps the audit trail trustworthy.
type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Chain       *ReasoningChain  `json:"chain,omitempty"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and UTC timestamp.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Chain != nil {
		cp.Chain = m.Chain.Clone()
	}
	cp.Invocations = append([]ToolInvocation(nil), m.Invocations...)
	return &cp
}

// ============================================================================
// REASONING CHAIN
// ============================================================================

// ActionKind names what a thought decided to do next.
type ActionKind string

const (
	ActionTool     ActionKind = "tool"
	ActionRetrieve ActionKind = "retrieve"
	ActionConclude ActionKind = "conclude"
)

// ActionRequest is the action a thought selected. Tool actions carry a
// tool name and arguments; retrieve actions carry a query.
type ActionRequest struct {
	Kind  ActionKind     `json:"kind"`
	Tool  string         `json:"tool,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
	Query string         `json:"query,omitempty"`
	TopK  int            `json:"top_k,omitempty"`
}

// ThoughtStep is one thought/action/observation triple in a chain.
// ContextSnapshot captures the exact input the reasoning backend saw, so
// a persisted chain can be replayed even though the backend itself is
// non-deterministic.
type ThoughtStep struct {
	Index           int            `json:"index"`
	Thought         string         `json:"thought"`
	Action          *ActionRequest `json:"action,omitempty"`
	Observation     string         `json:"observation,omitempty"`
	ContextSnapshot string         `json:"context_snapshot,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
}

// Citation ties a conclusion back to a retrieved chunk.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
}

// ReasoningChain records one full loop execution: the ordered thought
// steps, the conclusion, its confidence, and the evidence cited. Owned
// exclusively by its parent message.
type ReasoningChain struct {
	Steps      []ThoughtStep `json:"steps"`
	Conclusion string        `json:"conclusion"`
	Confidence float64       `json:"confidence"`
	Citations  []Citation    `json:"citations,omitempty"`
	Incomplete bool          `json:"incomplete,omitempty"`
}

// Clone returns a deep copy of the chain.
func (c *ReasoningChain) Clone() *ReasoningChain {
	cp := *c
	cp.Steps = append([]ThoughtStep(nil), c.Steps...)
	cp.Citations = append([]Citation(nil), c.Citations...)
	return &cp
}

// SetConfidence clamps v into [0,1] and stores it.
func (c *ReasoningChain) SetConfidence(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.Confidence = v
}

// ActingSteps counts steps that selected a tool or retrieval action.
func (c *ReasoningChain) ActingSteps() int {
	n := 0
	for _, s := range c.Steps {
		if s.Action != nil && s.Action.Kind != ActionConclude {
			n++
		}
	}
	return n
}

// ============================================================================
// TOOL INVOCATION
// ============================================================================

// ToolInvocation records a single executor call: validated arguments,
// outcome, latency, and how many retries it took. Immutable after
// completion. Retries are folded into one invocation via RetryCount, not
// recorded as separate entries.
type ToolInvocation struct {
	ID         string         `json:"id"`
	StepIndex  int            `json:"step_index"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args,omitempty"`
	Result     string         `json:"result,omitempty"`
	Err        string         `json:"error,omitempty"`
	ErrKind    string         `json:"error_kind,omitempty"`
	Latency    time.Duration  `json:"latency"`
	RetryCount int            `json:"retry_count"`
	StartedAt  time.Time      `json:"started_at"`
}

// Succeeded reports whether the invocation completed without error.
func (t *ToolInvocation) Succeeded() bool { return t.Err == "" }

// ============================================================================
// DOCUMENT / CHUNK
// ============================================================================

// Document is an ingested source. Re-ingesting the same source never
// mutates chunks in place: it produces a new Document with Version+1 and
// fresh chunk IDs, so cached retrieval results stay valid.
type Document struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Type       string            `json:"type"`
	Version    int               `json:"version"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Chunks     []Chunk           `json:"chunks"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// ChunkMetadata is positional information for a chunk: where in the
// source it came from.
type ChunkMetadata struct {
	Page       int    `json:"page,omitempty"`
	Section    string `json:"section,omitempty"`
	Offset     int    `json:"offset"`
	TokenCount int    `json:"token_count,omitempty"`
}

// Chunk is the atomic retrieval unit: a contiguous slice of a document's
// text. DocumentID is a weak back-reference for lookup, not ownership.
// Immutable once embedded.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Ordinal    int           `json:"ordinal"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ============================================================================
// EVIDENCE
// ============================================================================

// EvidenceItem is ranked retrieval output: a chunk reference with its
// combined relevance score and a human-readable attribution. Ephemeral;
// recomputed per query.
type EvidenceItem struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`
	Source       string  `json:"source"`
	Rank         int     `json:"rank"`
	Degraded     bool    `json:"degraded,omitempty"`
}
