// Package server exposes Scout's research sessions over HTTP. It
// serves a JSON API for session lifecycle and a Server-Sent Events
// stream that relays the reasoning trace of a running research turn to
// connected clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
	"github.com/veraxis/scout/pkg/session"
	"github.com/veraxis/scout/pkg/trace"
)

// Engine runs one research turn against a session. *agent.Engine
// satisfies this.
type Engine interface {
	Research(ctx context.Context, sessionID, question string) (*model.Message, error)
}

// Deps carries the collaborators the server exposes over HTTP.
type Deps struct {
	// Engine and Sessions are required.
	Engine   Engine
	Sessions *session.Service

	// Broadcast feeds the SSE stream. Without it, streaming requests
	// still run but only report the final result.
	Broadcast *trace.BroadcastSink

	// Traces serves recorded execution timelines. Without it, the
	// execution routes report that traces are not enabled.
	Traces *trace.Reader

	// Tracer and Metrics instrument every request. Both may be nil.
	Tracer  oteltrace.Tracer
	Metrics observability.Metrics
}

// Server is the HTTP front end. One research turn runs per session at
// a time; concurrent turns against the same session are rejected.
type Server struct {
	cfg       config.ServerConfig
	engine    Engine
	sessions  *session.Service
	broadcast *trace.BroadcastSink
	traces    *trace.Reader

	httpServer *http.Server

	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

// NewServer assembles the router and handlers.
func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	cfg.SetDefaults()

	s := &Server{
		cfg:       cfg,
		engine:    deps.Engine,
		sessions:  deps.Sessions,
		broadcast: deps.Broadcast,
		traces:    deps.Traces,
		runs:      make(map[string]context.CancelFunc),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router(deps.Tracer, deps.Metrics),
		ReadTimeout:  time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Duration(cfg.WriteTimeout),
	}
	return s, nil
}

func (s *Server) router(tracer oteltrace.Tracer, metrics observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(observability.HTTPMiddleware(tracer, metrics))
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", observability.MetricsHandler().ServeHTTP)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/executions", s.handleListExecutions)
			r.Get("/executions/{executionID}", s.handleGetExecution)
		})
	})

	return r
}

// Handler returns the assembled router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown cancels every running research turn and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelAllRuns()
	return s.httpServer.Shutdown(ctx)
}

// ============================================================================
// RUN TRACKING
// ============================================================================

// trackRun registers the cancel hook for a session's research turn.
// It reports false when a turn is already running for that session.
func (s *Server) trackRun(sessionID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.runs[sessionID]; running {
		return false
	}
	s.runs[sessionID] = cancel
	return true
}

func (s *Server) untrackRun(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, sessionID)
}

// cancelRun aborts the session's running turn, if any.
func (s *Server) cancelRun(sessionID string) {
	s.mu.Lock()
	cancel, ok := s.runs[sessionID]
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

func (s *Server) cancelAllRuns() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.runs))
	for _, cancel := range s.runs {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ============================================================================
// MIDDLEWARE
// ============================================================================

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows the configured origins, or any origin when
// none are configured.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
