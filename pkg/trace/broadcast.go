package trace

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 100

// BroadcastSink fans events out to live subscribers, keyed by session.
// It backs the SSE stream: one subscriber per connected client. Sends
// never block; a subscriber that falls more than subscriberBuffer
// events behind loses events, counted in Dropped.
type BroadcastSink struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	dropped     atomic.Uint64
}

func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{
		subscribers: make(map[string][]chan Event),
	}
}

func (s *BroadcastSink) Emit(event Event) {
	s.mu.RLock()
	subscribers := s.subscribers[event.SessionID]
	s.mu.RUnlock()

	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribe registers a listener for one session's events. The channel
// closes when the context is cancelled or the session's stream ends.
func (s *BroadcastSink) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	s.subscribers[sessionID] = append(s.subscribers[sessionID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(sessionID, ch)
	}()

	return ch
}

// EndSession closes every subscriber channel for the session. The
// engine calls this after the final event of an execution so streaming
// clients see end-of-stream.
func (s *BroadcastSink) EndSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subscribers, ok := s.subscribers[sessionID]; ok {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(s.subscribers, sessionID)
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (s *BroadcastSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close ends every session stream.
func (s *BroadcastSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sessionID, subscribers := range s.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(s.subscribers, sessionID)
	}
	return nil
}

func (s *BroadcastSink) unsubscribe(sessionID string, ch chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscribers, ok := s.subscribers[sessionID]
	if !ok {
		return
	}
	for i, sub := range subscribers {
		if sub == ch {
			s.subscribers[sessionID] = append(subscribers[:i], subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

var _ Sink = (*BroadcastSink)(nil)
