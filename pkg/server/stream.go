package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/trace"
)

type researchResult struct {
	msg *model.Message
	err error
}

// streamResearch runs one research turn and relays its trace events as
// SSE. The subscription is opened before the engine starts so no event
// is missed; the engine's sink must fan out to the broadcast sink for
// events to arrive. The stream always ends with a `complete` event,
// preceded by `error` when the turn failed.
func (s *Server) streamResearch(ctx context.Context, w http.ResponseWriter, sess *model.ResearchSession, content string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var events <-chan trace.Event
	if s.broadcast != nil {
		events = s.broadcast.Subscribe(ctx, sess.ID)
	}

	s.sendSSE(w, flusher, "session", sess)

	done := make(chan researchResult, 1)
	go func() {
		msg, err := s.engine.Research(ctx, sess.ID, content)
		done <- researchResult{msg: msg, err: err}
	}()

	for {
		select {
		case event, open := <-events:
			if !open {
				events = nil
				continue
			}
			s.relayEvent(w, flusher, event)

		case res := <-done:
			// Emits happen before Research returns, so anything still
			// in flight is already buffered. Drain it in order.
			s.drainEvents(w, flusher, events)
			s.finishStream(ctx, w, flusher, sess.ID, res)
			return
		}
	}
}

func (s *Server) drainEvents(w http.ResponseWriter, flusher http.Flusher, events <-chan trace.Event) {
	for events != nil {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			s.relayEvent(w, flusher, event)
		default:
			return
		}
	}
}

func (s *Server) finishStream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, res researchResult) {
	if res.err != nil {
		s.sendSSE(w, flusher, "error", map[string]any{
			"error": res.err.Error(),
			"kind":  fault.Kind(res.err),
		})
	}

	payload := map[string]any{}
	if res.msg != nil {
		payload["message"] = res.msg
	}
	// The session carries the turn's terminal status; read it on a
	// fresh context since the request's may already be cancelled.
	if sess, err := s.sessions.Get(context.WithoutCancel(ctx), sessionID); err == nil {
		payload["status"] = sess.Status
	}
	s.sendSSE(w, flusher, "complete", payload)
}

// relayEvent forwards one trace event under its public SSE name.
// Internal state transitions and tool bookkeeping stay off the wire.
func (s *Server) relayEvent(w http.ResponseWriter, flusher http.Flusher, event trace.Event) {
	name, ok := sseEventName(event.Type)
	if !ok {
		return
	}
	s.sendSSE(w, flusher, name, event)
}

func sseEventName(t trace.Type) (string, bool) {
	switch t {
	case trace.TypeThought:
		return "thought", true
	case trace.TypeAction:
		return "action", true
	case trace.TypeObservation:
		return "observation", true
	case trace.TypeEvidence:
		return "evidence", true
	case trace.TypeConclusion:
		return "final_answer", true
	case trace.TypeError:
		return "error", true
	default:
		return "", false
	}
}

func (s *Server) sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
