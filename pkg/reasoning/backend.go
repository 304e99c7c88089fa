// Package reasoning holds the research loop's control plane: the state
// machine, the step and wall-clock budget, and the pluggable backend
// that decides each step. The engine in pkg/agent drives all three; the
// ReAct backend in this package is the default Backend implementation.
package reasoning

import (
	"context"

	"github.com/veraxis/scout/pkg/model"
)

// ============================================================================
// BACKEND CONTRACT
// ============================================================================

// StepContext is the full input for one thinking step. The engine
// serializes it into the step's context snapshot, so a persisted chain
// can be replayed even though the backend itself is non-deterministic.
type StepContext struct {
	// Question is the user's research question for this turn.
	Question string

	// WorkingContext is the bounded conversation context assembled by
	// the memory strategy: a rolling summary plus recent messages.
	WorkingContext string

	// Steps holds the chain so far, in order.
	Steps []model.ThoughtStep

	// Evidence lists every item retrieved during this chain.
	Evidence []model.EvidenceItem

	// Remaining is how many acting steps the budget still allows.
	Remaining int
}

// Conclusion is a backend's final answer with its confidence and the
// chunk IDs it cites.
type Conclusion struct {
	Answer     string
	Confidence float64
	Citations  []string
}

// Decision is one backend verdict: act, conclude, or try again.
//
// At most one of Actions and Conclusion is set. Actions carries one
// entry per proposed action; independent actions proposed together are
// fanned out concurrently and observed as a unit. A decision with
// neither is a self-correction turn: Correction says what was wrong
// with the backend's reply, and the engine surfaces it as a synthetic
// observation and re-enters thinking without consuming a budget step.
type Decision struct {
	Thought    string
	Actions    []model.ActionRequest
	Conclusion *Conclusion
	Correction string
}

// Backend produces the next decision for a research loop. The engine is
// backend-agnostic: anything that maps a step context to a decision can
// drive it. Implementations must be safe for concurrent use across
// sessions.
type Backend interface {
	Decide(ctx context.Context, step *StepContext) (*Decision, error)
}
