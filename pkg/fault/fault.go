// Package fault defines the error taxonomy shared across the agent:
// the closed set of error kinds the reasoning engine branches on.
//
// Recoverable kinds (validation, evidence unavailable) are absorbed into
// observations the reasoning backend can react to. Retryable kinds
// (timeout, transient) are subject to executor retry policy. Budget and
// backend kinds end the loop or the session.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind names for classification and trace records.
const (
	KindValidation          = "validation"
	KindTimeout             = "timeout"
	KindTransient           = "transient"
	KindSandboxViolation    = "sandbox_violation"
	KindEvidenceUnavailable = "evidence_unavailable"
	KindBudgetExceeded      = "budget_exceeded"
	KindBackend             = "backend"
	KindCancelled           = "cancelled"
)

// Budget kinds for BudgetExceeded.
const (
	BudgetSteps     = "steps"
	BudgetWallClock = "wall_clock"
)

// ============================================================================
// VALIDATION
// ============================================================================

// ValidationError reports malformed tool input. Recoverable: the engine
// converts it into an observation and re-enters thinking without
// consuming a step budget slot. The handler is never called.
type ValidationError struct {
	Tool    string
	Field   string
	Message string
}

func NewValidationError(tool, field, message string) *ValidationError {
	return &ValidationError{Tool: tool, Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid arguments for tool '%s': field '%s': %s", e.Tool, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid arguments for tool '%s': %s", e.Tool, e.Message)
}

// ============================================================================
// TIMEOUT / TRANSIENT
// ============================================================================

// TimeoutError reports that an operation exceeded its configured limit.
// Not retried automatically; the engine decides via a new thought.
type TimeoutError struct {
	Operation string
	Limit     time.Duration
}

func NewTimeoutError(operation string, limit time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Limit: limit}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Limit)
}

// TransientError reports a failure expected to clear on retry (rate
// limit, flaky network). Retried per policy with backoff.
type TransientError struct {
	Operation string
	Attempt   int
	Err       error
}

func NewTransientError(operation string, attempt int, err error) *TransientError {
	return &TransientError{Operation: operation, Attempt: attempt, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s (attempt %d): %v", e.Operation, e.Attempt, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ============================================================================
// SANDBOX
// ============================================================================

// SandboxViolation reports that a tool breached its execution limits.
// Fatal for the invocation only, never for the process.
type SandboxViolation struct {
	Tool   string
	Rule   string
	Detail string
}

func NewSandboxViolation(tool, rule, detail string) *SandboxViolation {
	return &SandboxViolation{Tool: tool, Rule: rule, Detail: detail}
}

func (e *SandboxViolation) Error() string {
	return fmt.Sprintf("sandbox violation in tool '%s': %s: %s", e.Tool, e.Rule, e.Detail)
}

// ============================================================================
// EVIDENCE
// ============================================================================

// EvidenceUnavailable reports degraded or empty retrieval. Non-fatal:
// the engine reasons with reduced evidence.
type EvidenceUnavailable struct {
	Query  string
	Reason string
}

func NewEvidenceUnavailable(query, reason string) *EvidenceUnavailable {
	return &EvidenceUnavailable{Query: query, Reason: reason}
}

func (e *EvidenceUnavailable) Error() string {
	return fmt.Sprintf("no evidence available for query %q: %s", e.Query, e.Reason)
}

// ============================================================================
// BUDGET
// ============================================================================

// BudgetExceeded reports that the loop hit its step or wall-clock limit.
// Forces a best-effort conclusion flagged incomplete, never a silent
// failure.
type BudgetExceeded struct {
	Kind  string // BudgetSteps or BudgetWallClock
	Limit string
}

func NewBudgetExceeded(kind, limit string) *BudgetExceeded {
	return &BudgetExceeded{Kind: kind, Limit: limit}
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("%s budget exceeded (limit %s)", e.Kind, e.Limit)
}

// ============================================================================
// BACKEND
// ============================================================================

// BackendError reports that the reasoning backend stayed unreachable
// through the configured attempts. Fatal for the session.
type BackendError struct {
	Provider string
	Attempts int
	Err      error
}

func NewBackendError(provider string, attempts int, err error) *BackendError {
	return &BackendError{Provider: provider, Attempts: attempts, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("reasoning backend '%s' failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelledError reports a user- or context-initiated abort. The session
// transitions to failed with this reason.
type CancelledError struct {
	Reason string
}

func NewCancelledError(reason string) *CancelledError {
	if reason == "" {
		reason = "cancelled"
	}
	return &CancelledError{Reason: reason}
}

func (e *CancelledError) Error() string { return e.Reason }

// ============================================================================
// CLASSIFICATION
// ============================================================================

// Kind returns the taxonomy name for err, or "" for untyped errors.
func Kind(err error) string {
	switch {
	case errors.As(err, new(*ValidationError)):
		return KindValidation
	case errors.As(err, new(*TimeoutError)):
		return KindTimeout
	case errors.As(err, new(*TransientError)):
		return KindTransient
	case errors.As(err, new(*SandboxViolation)):
		return KindSandboxViolation
	case errors.As(err, new(*EvidenceUnavailable)):
		return KindEvidenceUnavailable
	case errors.As(err, new(*BudgetExceeded)):
		return KindBudgetExceeded
	case errors.As(err, new(*BackendError)):
		return KindBackend
	case errors.As(err, new(*CancelledError)):
		return KindCancelled
	}
	return ""
}

// IsRecoverable reports whether err should be absorbed into an
// observation rather than failing the session.
func IsRecoverable(err error) bool {
	switch Kind(err) {
	case KindValidation, KindTimeout, KindTransient, KindSandboxViolation, KindEvidenceUnavailable:
		return true
	}
	return false
}

// IsRetryable reports whether the executor retry policy applies to err.
func IsRetryable(err error) bool {
	k := Kind(err)
	return k == KindTransient
}
