package reasoning

import (
	"fmt"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
)

// ============================================================================
// BUDGET
// ============================================================================

// Budget bounds one loop execution: at most MaxSteps acting steps and
// at most WallClock elapsed time. A zero field leaves that bound off.
type Budget struct {
	MaxSteps  int
	WallClock time.Duration
}

// BudgetFromConfig reads the loop bounds from the reasoning section.
func BudgetFromConfig(cfg config.ReasoningConfig) Budget {
	cfg.SetDefaults()
	return Budget{
		MaxSteps:  cfg.MaxSteps,
		WallClock: cfg.Budget.Duration(),
	}
}

// Tracker counts consumed steps against a budget. Only schema-valid
// acting steps consume a slot: validation failures and self-correction
// turns are free, so a confused backend burns wall clock but never the
// step budget. Trackers are per-execution and not safe for concurrent
// use.
type Tracker struct {
	budget  Budget
	started time.Time
	steps   int
	now     func() time.Time
}

// NewTracker starts the wall clock for one execution.
func NewTracker(budget Budget) *Tracker {
	t := &Tracker{budget: budget, now: time.Now}
	t.started = t.now()
	return t
}

// ConsumeStep records one acting step and returns the new count.
func (t *Tracker) ConsumeStep() int {
	t.steps++
	return t.steps
}

// Steps returns how many acting steps have been consumed.
func (t *Tracker) Steps() int { return t.steps }

// Remaining returns how many acting steps the budget still allows.
func (t *Tracker) Remaining() int {
	if t.budget.MaxSteps <= 0 {
		return 0
	}
	left := t.budget.MaxSteps - t.steps
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed returns how long the execution has been running.
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.started)
}

// Deadline returns the wall-clock cutoff for this execution.
func (t *Tracker) Deadline() time.Time {
	return t.started.Add(t.budget.WallClock)
}

// Check returns a fault.BudgetExceeded once either bound is reached,
// nil while the loop may continue.
func (t *Tracker) Check() error {
	if t.budget.MaxSteps > 0 && t.steps >= t.budget.MaxSteps {
		return fault.NewBudgetExceeded(fault.BudgetSteps, fmt.Sprintf("%d steps", t.budget.MaxSteps))
	}
	if t.budget.WallClock > 0 && t.Elapsed() >= t.budget.WallClock {
		return fault.NewBudgetExceeded(fault.BudgetWallClock, t.budget.WallClock.String())
	}
	return nil
}
