// Package trace records the thought/action/observation timeline of a
// research execution. The engine emits one Event per reasoning
// transition; sinks fan the stream out to files, logs, and live
// subscribers. Emit never blocks the engine: slow consumers drop
// events and count the drops.
package trace

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veraxis/scout/pkg/config"
)

// ============================================================================
// EVENTS
// ============================================================================

// Type classifies a trace event.
type Type string

const (
	TypeState       Type = "state"
	TypeThought     Type = "thought"
	TypeAction      Type = "action"
	TypeObservation Type = "observation"
	TypeEvidence    Type = "evidence"
	TypeTool        Type = "tool"
	TypeConclusion  Type = "conclusion"
	TypeError       Type = "error"
)

// Event is one entry in an execution timeline.
type Event struct {
	SessionID   string         `json:"session_id"`
	ExecutionID string         `json:"execution_id"`
	Seq         int            `json:"seq"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        Type           `json:"type"`
	StepIndex   int            `json:"step_index,omitempty"`
	State       string         `json:"state,omitempty"`
	Content     string         `json:"content,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Sink receives trace events. Implementations must not block.
type Sink interface {
	Emit(event Event)
}

// ============================================================================
// RECORDER
// ============================================================================

// Recorder stamps events for one execution: session and execution ids,
// a monotonic sequence number, and the timestamp. One recorder per
// research turn; not shared across executions.
type Recorder struct {
	sessionID   string
	executionID string
	seq         atomic.Int64
	sink        Sink
}

// NewRecorder creates a recorder for the given session. An empty
// executionID gets a fresh UUID.
func NewRecorder(sink Sink, sessionID, executionID string) *Recorder {
	if executionID == "" {
		executionID = uuid.NewString()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{
		sessionID:   sessionID,
		executionID: executionID,
		sink:        sink,
	}
}

// ExecutionID returns the execution this recorder stamps.
func (r *Recorder) ExecutionID() string { return r.executionID }

// Emit stamps and forwards the event.
func (r *Recorder) Emit(event Event) {
	event.SessionID = r.sessionID
	event.ExecutionID = r.executionID
	event.Seq = int(r.seq.Add(1))
	event.Timestamp = time.Now().UTC()
	r.sink.Emit(event)
}

// ============================================================================
// BASIC SINKS
// ============================================================================

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans each event out to every child in order.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}

// MemorySink buffers events for inspection.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a snapshot of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Reset drops buffered events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// SlogSink mirrors events to the process logger at debug level.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(event Event) {
	s.logger.Debug("trace event",
		"session_id", event.SessionID,
		"execution_id", event.ExecutionID,
		"seq", event.Seq,
		"type", string(event.Type),
		"step", event.StepIndex,
		"state", event.State,
		"content", clip(event.Content, 160),
	)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}

// NewSinkFromConfig assembles the configured sinks plus any extras
// (typically the server's BroadcastSink) into one fan-out.
func NewSinkFromConfig(cfg config.TraceConfig, logger *slog.Logger, extra ...Sink) Sink {
	cfg.SetDefaults()

	var sinks MultiSink
	if cfg.File != nil && *cfg.File {
		sinks = append(sinks, NewFileSink(cfg.Dir))
	}
	if cfg.Slog {
		sinks = append(sinks, NewSlogSink(logger))
	}
	for _, sink := range extra {
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}
	if len(sinks) == 0 {
		return NopSink{}
	}
	return sinks
}

var (
	_ Sink = NopSink{}
	_ Sink = MultiSink{}
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*SlogSink)(nil)
)
