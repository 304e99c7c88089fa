package reasoning

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// LOOP STATES
// ============================================================================

// State is one phase of the research loop.
type State string

const (
	StateIdle       State = "idle"
	StateThinking   State = "thinking"
	StateActing     State = "acting"
	StateObserving  State = "observing"
	StateConcluding State = "concluding"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Transitions lists the legal moves out of each state. Acting returns
// straight to thinking when action validation fails (the self-correction
// path), and concluding returns to thinking when a citation check or
// critique sends the loop back. Failed is reachable from every state,
// including done, for a turn whose final append could not be made
// durable.
var Transitions = map[State][]State{
	StateIdle:       {StateThinking, StateFailed},
	StateThinking:   {StateActing, StateConcluding, StateFailed},
	StateActing:     {StateObserving, StateThinking, StateFailed},
	StateObserving:  {StateThinking, StateConcluding, StateFailed},
	StateConcluding: {StateDone, StateThinking, StateFailed},
	StateDone:       {StateFailed},
	StateFailed:     {},
}

// Terminal reports whether s ends the loop.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

// ============================================================================
// STATE MACHINE
// ============================================================================

// TransitionRecord is one recorded state change.
type TransitionRecord struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Machine tracks the loop state for one execution and rejects illegal
// moves. An illegal transition is a programming error in the engine,
// so To surfaces it as an error instead of silently ignoring it.
type Machine struct {
	mu      sync.Mutex
	current State
	history []TransitionRecord
	now     func() time.Time
}

// NewMachine returns a machine starting in StateIdle.
func NewMachine() *Machine {
	return &Machine{current: StateIdle, now: time.Now}
}

// Current returns the machine's present state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Can reports whether moving to next is legal from the current state.
func (m *Machine) Can(next State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canLocked(next)
}

func (m *Machine) canLocked(next State) bool {
	for _, s := range Transitions[m.current] {
		if s == next {
			return true
		}
	}
	return false
}

// To moves the machine to next and records the transition.
func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canLocked(next) {
		return fmt.Errorf("illegal state transition: %s -> %s", m.current, next)
	}

	m.history = append(m.history, TransitionRecord{
		From: m.current,
		To:   next,
		At:   m.now().UTC(),
	})
	m.current = next
	return nil
}

// History returns a copy of every transition taken so far.
func (m *Machine) History() []TransitionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransitionRecord(nil), m.history...)
}
