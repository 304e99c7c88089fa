package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/session"
	"github.com/veraxis/scout/pkg/trace"
)

// statusClientClosedRequest mirrors the nginx convention for a request
// the client abandoned before a response was written.
const statusClientClosedRequest = 499

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream"`
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.UserID, req.Topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GET /v1/sessions?user_id=...
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /v1/sessions/{sessionID}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// DELETE /v1/sessions/{sessionID}
//
// A running research turn is cancelled before the record is removed.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.cancelRun(id)
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{sessionID}/messages
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	// Resolve before starting so bad ids fail with a JSON error, not
	// half a stream.
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !s.trackRun(sess.ID, cancel) {
		writeError(w, http.StatusConflict, "research is already running for this session")
		return
	}
	defer s.untrackRun(sess.ID)

	if req.Stream {
		s.streamResearch(ctx, w, sess, req.Content)
		return
	}

	msg, err := s.engine.Research(ctx, sess.ID, req.Content)
	if err != nil {
		s.writeResearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// GET /v1/sessions/{sessionID}/executions
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeError(w, http.StatusNotFound, "execution traces are not enabled")
		return
	}
	id := chi.URLParam(r, "sessionID")

	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.writeSessionError(w, err)
		return
	}

	executions, err := s.traces.Executions(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": executions})
}

// GET /v1/sessions/{sessionID}/executions/{executionID}
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeError(w, http.StatusNotFound, "execution traces are not enabled")
		return
	}

	events, err := s.traces.Load(chi.URLParam(r, "sessionID"), chi.URLParam(r, "executionID"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "execution trace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []trace.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// ============================================================================
// ERROR MAPPING
// ============================================================================

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeResearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		switch fault.Kind(err) {
		case fault.KindValidation:
			writeError(w, http.StatusBadRequest, err.Error())
		case fault.KindCancelled:
			writeError(w, statusClientClosedRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}
