package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veraxis/scout/pkg/model"
)

// ============================================================================
// IN-MEMORY STORE
// ============================================================================

// MemoryStore keeps sessions in process memory. Suited to single-node
// serving and tests; everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.ResearchSession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.ResearchSession),
	}
}

// Put inserts a new session.
func (s *MemoryStore) Put(ctx context.Context, session *model.ResearchSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session with an id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %q already exists", session.ID)
	}
	s.sessions[session.ID] = session.Snapshot()
	return nil
}

// Get returns a deep copy of the session.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.ResearchSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return session.Snapshot(), nil
}

// List returns message-free copies, newest first.
func (s *MemoryStore) List(ctx context.Context, userID string) ([]*model.ResearchSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*model.ResearchSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if userID != "" && session.UserID != userID {
			continue
		}
		cp := session.Snapshot()
		cp.Messages = nil
		sessions = append(sessions, cp)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// AppendMessage adds a message to the end of the log.
func (s *MemoryStore) AppendMessage(ctx context.Context, id string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	session.Messages = append(session.Messages, *msg.Clone())
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus sets the status and failure reason.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.SessionStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	session.Status = status
	session.FailureReason = reason
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// AddArtifact attaches an artifact.
func (s *MemoryStore) AddArtifact(ctx context.Context, id string, artifact model.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	artifact.Content = append([]byte(nil), artifact.Content...)
	session.Artifacts = append(session.Artifacts, artifact)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
