package trace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastSink_DeliversPerSession(t *testing.T) {
	sink := NewBroadcastSink()
	defer sink.Close()

	ctx := context.Background()
	alice := sink.Subscribe(ctx, "session-a")
	bob := sink.Subscribe(ctx, "session-b")

	sink.Emit(Event{SessionID: "session-a", Type: TypeThought, Content: "for alice"})

	select {
	case event := <-alice:
		assert.Equal(t, "for alice", event.Content)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}

	select {
	case event := <-bob:
		t.Fatalf("wrong session received event: %+v", event)
	default:
	}
}

func TestBroadcastSink_SlowSubscriberDrops(t *testing.T) {
	sink := NewBroadcastSink()
	defer sink.Close()

	sink.Subscribe(context.Background(), "session-a")

	for i := 0; i < subscriberBuffer+5; i++ {
		sink.Emit(Event{SessionID: "session-a", Type: TypeObservation})
	}

	assert.Equal(t, uint64(5), sink.Dropped())
}

func TestBroadcastSink_EndSessionClosesSubscribers(t *testing.T) {
	sink := NewBroadcastSink()

	ch := sink.Subscribe(context.Background(), "session-a")
	sink.Emit(Event{SessionID: "session-a", Type: TypeConclusion, Content: "done"})
	sink.EndSession("session-a")

	event, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "done", event.Content)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after EndSession")

	// Ending twice or emitting afterwards is harmless.
	sink.EndSession("session-a")
	sink.Emit(Event{SessionID: "session-a", Type: TypeThought})
}

func TestBroadcastSink_ContextCancelUnsubscribes(t *testing.T) {
	sink := NewBroadcastSink()
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := sink.Subscribe(ctx, "session-a")
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "channel should close after context cancel")

	// EndSession must not double-close the departed channel.
	sink.EndSession("session-a")
}

func TestBroadcastSink_CloseEndsAllStreams(t *testing.T) {
	sink := NewBroadcastSink()

	a := sink.Subscribe(context.Background(), "session-a")
	b := sink.Subscribe(context.Background(), "session-b")
	require.NoError(t, sink.Close())

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-b
	assert.False(t, ok)
}
