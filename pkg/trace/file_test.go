package trace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	rec := NewRecorder(sink, "session-1", "exec-1")

	rec.Emit(Event{Type: TypeState, State: "thinking"})
	rec.Emit(Event{Type: TypeAction, Content: "web_search", Fields: map[string]any{"query": "quicksort"}})
	rec.Emit(Event{Type: TypeConclusion, Content: "answer"})

	reader := NewReader(dir)

	executions, err := reader.Executions("session-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1"}, executions)

	events, err := reader.Load("session-1", "exec-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, TypeState, events[0].Type)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, "web_search", events[1].Content)
	assert.Equal(t, "quicksort", events[1].Fields["query"])
	assert.Equal(t, TypeConclusion, events[2].Type)
	assert.Zero(t, sink.Errors())
}

func TestFileSink_SeparatesExecutions(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)

	NewRecorder(sink, "session-1", "exec-a").Emit(Event{Type: TypeThought})
	NewRecorder(sink, "session-1", "exec-b").Emit(Event{Type: TypeThought})

	executions, err := NewReader(dir).Executions("session-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-a", "exec-b"}, executions)
}

func TestFileSink_RejectsUnsafeIDs(t *testing.T) {
	sink := NewFileSink(t.TempDir())

	sink.Emit(Event{SessionID: "../escape", ExecutionID: "exec-1", Type: TypeThought})
	sink.Emit(Event{SessionID: "session-1", ExecutionID: "a/b", Type: TypeThought})

	assert.Equal(t, uint64(2), sink.Errors())
}

func TestReader_MissingSessionIsEmpty(t *testing.T) {
	reader := NewReader(t.TempDir())

	executions, err := reader.Executions("never-seen")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestReader_MissingExecution(t *testing.T) {
	reader := NewReader(t.TempDir())

	_, err := reader.Load("session-1", "exec-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReader_RejectsUnsafeIDs(t *testing.T) {
	reader := NewReader(t.TempDir())

	_, err := reader.Executions("..")
	require.Error(t, err)

	_, err = reader.Load("session-1", "../../etc/passwd")
	require.Error(t, err)
}

func TestReader_CorruptLine(t *testing.T) {
	dir := t.TempDir()
	path := executionPath(dir, "session-1", "exec-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1,\"type\":\"thought\"}\nnot json\n"), 0o644))

	_, err := NewReader(dir).Load("session-1", "exec-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt trace line")
}

func TestSafeID(t *testing.T) {
	assert.True(t, safeID("0b054f33-9559-4c5c-a06a-cf3c9e1f24e2"))
	assert.False(t, safeID(""))
	assert.False(t, safeID("."))
	assert.False(t, safeID(".."))
	assert.False(t, safeID("a/b"))
	assert.False(t, safeID(`a\b`))
}
