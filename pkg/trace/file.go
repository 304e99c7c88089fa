package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ============================================================================
// FILE SINK
// ============================================================================

// FileSink appends events as JSON lines, one file per execution under
// <dir>/sessions/<session_id>/execution_<execution_id>.json. Lines are
// written as events arrive so a crashed execution still leaves a
// readable trace.
type FileSink struct {
	dir    string
	mu     sync.Mutex
	errorN atomic.Uint64
}

func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "logs"
	}
	return &FileSink{dir: dir}
}

func (s *FileSink) Emit(event Event) {
	if !safeID(event.SessionID) || !safeID(event.ExecutionID) {
		s.errorN.Add(1)
		return
	}

	line, err := json.Marshal(event)
	if err != nil {
		s.errorN.Add(1)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := executionPath(s.dir, event.SessionID, event.ExecutionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.fail("failed to create trace directory", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.fail("failed to open trace file", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.fail("failed to write trace event", err)
	}
}

// Errors returns how many events could not be written.
func (s *FileSink) Errors() uint64 {
	return s.errorN.Load()
}

func (s *FileSink) fail(msg string, err error) {
	s.errorN.Add(1)
	slog.Warn(msg, "error", err)
}

// ============================================================================
// READER
// ============================================================================

// Reader serves traces written by a FileSink with the same dir.
type Reader struct {
	dir string
}

func NewReader(dir string) *Reader {
	if dir == "" {
		dir = "logs"
	}
	return &Reader{dir: dir}
}

// Executions lists execution ids recorded for a session, sorted. A
// session with no traces yields an empty list, not an error.
func (r *Reader) Executions(sessionID string) ([]string, error) {
	if !safeID(sessionID) {
		return nil, fmt.Errorf("invalid session id")
	}

	entries, err := os.ReadDir(filepath.Join(r.dir, "sessions", sessionID))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "execution_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "execution_"), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads one execution trace in emit order. A missing trace
// surfaces as fs.ErrNotExist.
func (r *Reader) Load(sessionID, executionID string) ([]Event, error) {
	if !safeID(sessionID) || !safeID(executionID) {
		return nil, fmt.Errorf("invalid trace id")
	}

	f, err := os.Open(executionPath(r.dir, sessionID, executionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("corrupt trace line: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return events, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func executionPath(dir, sessionID, executionID string) string {
	return filepath.Join(dir, "sessions", sessionID, "execution_"+executionID+".json")
}

// safeID rejects ids that could escape the trace directory. Ids are
// UUIDs everywhere Scout generates them, but the reader also sees
// request input.
func safeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

var _ Sink = (*FileSink)(nil)
