// Package session owns the durable research session log: an
// append-only message history per session plus lifecycle status. The
// Service enforces the invariants (append-only, terminal states final);
// stores only persist.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/veraxis/scout/pkg/model"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrNotFound reports an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrTerminal reports a write against a completed or failed session.
	ErrTerminal = errors.New("session is in a terminal state")
)

// ============================================================================
// STORE
// ============================================================================

// Store persists sessions. Implementations do not enforce lifecycle
// rules; the Service does that before calling in.
type Store interface {
	// Put inserts a new session. The id must not exist yet.
	Put(ctx context.Context, session *model.ResearchSession) error

	// Get returns a session with its full message history.
	Get(ctx context.Context, id string) (*model.ResearchSession, error)

	// List returns session summaries (no messages), newest first.
	// An empty userID lists all users.
	List(ctx context.Context, userID string) ([]*model.ResearchSession, error)

	// AppendMessage adds a message to the end of the session log.
	AppendMessage(ctx context.Context, id string, msg *model.Message) error

	// UpdateStatus sets the session status and failure reason.
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus, reason string) error

	// AddArtifact attaches an artifact to the session.
	AddArtifact(ctx context.Context, id string, artifact model.Artifact) error

	// Delete removes the session and its messages.
	Delete(ctx context.Context, id string) error

	Close() error
}

// ============================================================================
// SERVICE
// ============================================================================

// Service is the session API the engine and server use. It guards the
// log's invariants: messages are append-only, history is never edited,
// and terminal sessions reject every further write.
//
// Lifecycle checks read current state and then write; concurrent writes
// to the same session are serialized by the caller (the engine runs one
// research turn per session at a time).
type Service struct {
	store Store
}

// NewService wraps a store with lifecycle enforcement.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	return &Service{store: store}, nil
}

// Create starts a new session in the planning state.
func (s *Service) Create(ctx context.Context, userID, topic string) (*model.ResearchSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	session := model.NewSession(userID, topic)
	if err := s.store.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session with its full history.
func (s *Service) Get(ctx context.Context, id string) (*model.ResearchSession, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	return s.store.Get(ctx, id)
}

// List returns the user's sessions, newest first, without messages.
func (s *Service) List(ctx context.Context, userID string) ([]*model.ResearchSession, error) {
	return s.store.List(ctx, userID)
}

// AppendMessage adds a message to the session log. Terminal sessions
// reject appends.
func (s *Service) AppendMessage(ctx context.Context, id string, msg *model.Message) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role: %q", msg.Role)
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return fmt.Errorf("cannot append to session %q: %w", id, ErrTerminal)
	}

	return s.store.AppendMessage(ctx, id, msg)
}

// UpdateStatus moves the session through its lifecycle. Terminal states
// are final; entering the failed state records the reason.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.SessionStatus, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid session status: %q", status)
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return fmt.Errorf("cannot move session %q from %s to %s: %w", id, session.Status, status, ErrTerminal)
	}

	if status != model.SessionFailed {
		reason = ""
	}
	return s.store.UpdateStatus(ctx, id, status, reason)
}

// AddArtifact attaches a generated output to a live session.
func (s *Service) AddArtifact(ctx context.Context, id string, artifact model.Artifact) error {
	if artifact.Name == "" {
		return fmt.Errorf("artifact name is required")
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return fmt.Errorf("cannot attach artifact to session %q: %w", id, ErrTerminal)
	}

	return s.store.AddArtifact(ctx, id, artifact)
}

// Delete removes a session entirely.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	return s.store.Delete(ctx, id)
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
