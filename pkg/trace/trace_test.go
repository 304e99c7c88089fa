package trace

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxis/scout/pkg/config"
)

func TestRecorder_StampsEvents(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, "session-1", "exec-1")

	rec.Emit(Event{Type: TypeThought, Content: "need evidence first"})
	rec.Emit(Event{Type: TypeAction, Content: "web_search", StepIndex: 1})

	events := sink.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "session-1", events[0].SessionID)
	assert.Equal(t, "exec-1", events[0].ExecutionID)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, 2, events[1].Seq)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, TypeAction, events[1].Type)
	assert.Equal(t, 1, events[1].StepIndex)
}

func TestRecorder_GeneratesExecutionID(t *testing.T) {
	rec := NewRecorder(NewMemorySink(), "session-1", "")
	require.NotEmpty(t, rec.ExecutionID())

	other := NewRecorder(NewMemorySink(), "session-1", "")
	assert.NotEqual(t, rec.ExecutionID(), other.ExecutionID())
}

func TestRecorder_NilSinkIsSafe(t *testing.T) {
	rec := NewRecorder(nil, "session-1", "exec-1")
	rec.Emit(Event{Type: TypeState, State: "thinking"})
}

func TestMemorySink_SnapshotIsolation(t *testing.T) {
	sink := NewMemorySink()
	sink.Emit(Event{Type: TypeThought, Content: "original"})

	snapshot := sink.Events()
	snapshot[0].Content = "scribbled"

	assert.Equal(t, "original", sink.Events()[0].Content)

	sink.Reset()
	assert.Empty(t, sink.Events())
}

func TestMultiSink_FansOutInOrder(t *testing.T) {
	first := NewMemorySink()
	second := NewMemorySink()
	multi := MultiSink{first, second}

	multi.Emit(Event{Type: TypeEvidence, Content: "3 chunks"})

	require.Len(t, first.Events(), 1)
	require.Len(t, second.Events(), 1)
	assert.Equal(t, TypeEvidence, second.Events()[0].Type)
}

func TestNewSinkFromConfig(t *testing.T) {
	off := config.BoolPtr(false)

	sink := NewSinkFromConfig(config.TraceConfig{File: off}, slog.Default())
	assert.IsType(t, NopSink{}, sink)

	broadcast := NewBroadcastSink()
	sink = NewSinkFromConfig(config.TraceConfig{File: off, Slog: true}, slog.Default(), broadcast)
	multi, ok := sink.(MultiSink)
	require.True(t, ok)
	assert.Len(t, multi, 2)

	sink = NewSinkFromConfig(config.TraceConfig{Dir: t.TempDir()}, nil)
	multi, ok = sink.(MultiSink)
	require.True(t, ok)
	assert.Len(t, multi, 1)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcde...", clip("abcdefghij", 5))
}
