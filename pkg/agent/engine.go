// Package agent orchestrates one research turn: it drives the
// reasoning loop across its states, fans actions out to tools and the
// retriever, verifies citations, and records the whole execution as a
// reasoning chain on a durable session message. The engine is
// stateless across turns; everything per-run lives in an execution.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/memory"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
	"github.com/veraxis/scout/pkg/reasoning"
	"github.com/veraxis/scout/pkg/retriever"
	"github.com/veraxis/scout/pkg/session"
	"github.com/veraxis/scout/pkg/tools"
	"github.com/veraxis/scout/pkg/trace"
)

const (
	// defaultRetrieveTopK is used when a retrieve action names no top_k.
	defaultRetrieveTopK = 5

	// maxCitationRounds bounds how often a conclusion with unverifiable
	// citations sends the loop back to thinking before the invalid
	// citations are dropped instead.
	maxCitationRounds = 2

	// incompleteConfidence is assigned to engine-composed answers after
	// budget exhaustion.
	incompleteConfidence = 0.2

	// observationClip caps tool output carried into an observation.
	observationClip = 2000
)

// CitationResolver checks that a cited chunk still belongs to an active
// document version. index.Store satisfies it.
type CitationResolver interface {
	Resolve(chunkID string) (*model.Chunk, bool)
}

// Deps are the collaborators an engine drives. Backend and Sessions are
// required; the rest degrade gracefully when absent (no retriever means
// retrieve actions observe "retrieval is not available", and so on).
type Deps struct {
	Backend   reasoning.Backend
	Executor  *tools.Executor
	Retriever retriever.Retriever
	Resolver  CitationResolver
	Memory    memory.Strategy
	Sessions  *session.Service
	Sink      trace.Sink
}

// Engine runs research turns. Safe for concurrent use across sessions;
// turns within one session are expected to run one at a time.
type Engine struct {
	backend   reasoning.Backend
	executor  *tools.Executor
	retriever retriever.Retriever
	resolver  CitationResolver
	memory    memory.Strategy
	sessions  *session.Service
	sink      trace.Sink
	budget    reasoning.Budget
	critique  config.CritiqueConfig
}

func NewEngine(cfg config.ReasoningConfig, deps Deps) (*Engine, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("reasoning backend is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	cfg.SetDefaults()

	sink := deps.Sink
	if sink == nil {
		sink = trace.NopSink{}
	}

	return &Engine{
		backend:   deps.Backend,
		executor:  deps.Executor,
		retriever: deps.Retriever,
		resolver:  deps.Resolver,
		memory:    deps.Memory,
		sessions:  deps.Sessions,
		sink:      sink,
		budget:    reasoning.BudgetFromConfig(cfg),
		critique:  cfg.Critique,
	}, nil
}

// execution is the per-run state: one question, one chain, one budget.
type execution struct {
	sessionID      string
	question       string
	machine        *reasoning.Machine
	tracker        *reasoning.Tracker
	rec            *trace.Recorder
	workingContext string
	chain          *model.ReasoningChain
	evidence       []model.EvidenceItem
	seenChunks     map[string]bool
	invocations    []model.ToolInvocation
	citationRounds int
	revisions      int
	started        time.Time
}

// Research runs one full turn and returns the assistant message that
// was appended to the session, chain and invocations attached.
func (e *Engine) Research(ctx context.Context, sessionID, question string) (*model.Message, error) {
	return e.ResearchStream(ctx, sessionID, question, nil)
}

// ResearchStream is Research with an extra per-call event sink, merged
// with the engine's configured sinks for the duration of the turn.
func (e *Engine) ResearchStream(ctx context.Context, sessionID, question string, extra trace.Sink) (*model.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fault.NewValidationError("research", "question", "a question is required")
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot research in session %q: %w", sessionID, session.ErrTerminal)
	}

	sink := e.sink
	if extra != nil {
		sink = trace.MultiSink{e.sink, extra}
	}

	run := &execution{
		sessionID:  sessionID,
		question:   question,
		machine:    reasoning.NewMachine(),
		tracker:    reasoning.NewTracker(e.budget),
		rec:        trace.NewRecorder(sink, sessionID, ""),
		chain:      &model.ReasoningChain{},
		seenChunks: make(map[string]bool),
		started:    time.Now(),
	}

	tracer := observability.GetTracer("scout.agent")
	ctx, span := tracer.Start(ctx, observability.SpanSessionRun)
	span.SetAttributes(
		attribute.String(observability.AttrSessionID, sessionID),
		attribute.String("execution.id", run.rec.ExecutionID()),
	)
	defer span.End()

	msg, err := e.run(ctx, run, sess)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("steps", len(run.chain.Steps)),
		attribute.Bool("incomplete", run.chain.Incomplete),
	)
	return msg, nil
}

func (e *Engine) run(ctx context.Context, run *execution, sess *model.ResearchSession) (*model.Message, error) {
	if err := e.sessions.UpdateStatus(ctx, run.sessionID, model.SessionRunning, ""); err != nil {
		return nil, fmt.Errorf("failed to start research turn: %w", err)
	}
	if err := e.sessions.AppendMessage(ctx, run.sessionID, model.NewMessage(model.RoleUser, run.question)); err != nil {
		return nil, e.fail(ctx, run, "failed to record question", fmt.Errorf("failed to record question: %w", err))
	}

	// The working context covers the conversation before this question;
	// memory trouble degrades to an empty context, never a failed turn.
	if e.memory != nil {
		wc, err := e.memory.Assemble(ctx, run.sessionID, sess.Messages, run.question)
		if err != nil {
			slog.Warn("Memory assembly failed, continuing without context",
				"session_id", run.sessionID, "error", err)
		} else {
			run.workingContext = wc.Render()
		}
	}

	if err := e.to(run, reasoning.StateThinking); err != nil {
		return nil, e.fail(ctx, run, "internal state error", err)
	}

	for {
		if ctx.Err() != nil {
			return nil, e.cancel(ctx, run)
		}
		if budgetErr := run.tracker.Check(); budgetErr != nil {
			return e.concludeExhausted(ctx, run, budgetErr)
		}

		decision, err := e.decide(ctx, run)
		if err != nil {
			if ctx.Err() != nil || fault.Kind(err) == fault.KindCancelled {
				return nil, e.cancel(ctx, run)
			}
			return nil, e.fail(ctx, run, fmt.Sprintf("reasoning backend failed: %v", err), err)
		}

		step := run.newStep(decision.Thought)
		run.rec.Emit(trace.Event{
			Type:      trace.TypeThought,
			StepIndex: step.Index,
			Content:   decision.Thought,
		})

		switch {
		case decision.Correction != "":
			// The backend could not produce a usable decision; surface
			// why as an observation and think again. No budget slot.
			step.Observation = "self-correction: " + decision.Correction
			run.appendStep(step)

		case decision.Conclusion != nil:
			msg, retry, err := e.conclude(ctx, run, step, decision.Conclusion, false)
			if err != nil {
				return nil, err
			}
			if retry {
				continue
			}
			return msg, nil

		case len(decision.Actions) > 0:
			if err := e.act(ctx, run, step, decision.Actions); err != nil {
				if ctx.Err() != nil {
					return nil, e.cancel(ctx, run)
				}
				return nil, e.fail(ctx, run, "internal state error", err)
			}

		default:
			step.Observation = "self-correction: the decision carried no action and no conclusion"
			run.appendStep(step)
		}
	}
}

// decide asks the backend for the next move, one span per step.
func (e *Engine) decide(ctx context.Context, run *execution) (*reasoning.Decision, error) {
	tracer := observability.GetTracer("scout.agent")
	ctx, span := tracer.Start(ctx, observability.SpanReasoningStep)
	span.SetAttributes(
		attribute.Int(observability.AttrStepIndex, len(run.chain.Steps)),
		attribute.Int("budget.remaining", run.tracker.Remaining()),
	)
	defer span.End()

	decision, err := e.backend.Decide(ctx, run.stepContext())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return decision, nil
}

// ============================================================================
// ACTING
// ============================================================================

// actionResult is what one fanned-out action produced.
type actionResult struct {
	observation      string
	invocation       *model.ToolInvocation
	evidence         []model.EvidenceItem
	validationFailed bool
}

// act runs every proposed action concurrently and joins the results
// into one observation. Only schema-valid acting consumes a budget
// step: when every action fails validation the loop returns to
// thinking with the errors as its observation, budget untouched.
func (e *Engine) act(ctx context.Context, run *execution, step *model.ThoughtStep, actions []model.ActionRequest) error {
	if err := e.to(run, reasoning.StateActing); err != nil {
		return err
	}
	step.Action = &actions[0]

	for _, action := range actions {
		run.rec.Emit(trace.Event{
			Type:      trace.TypeAction,
			StepIndex: step.Index,
			Content:   actionLabel(action),
			Fields:    actionFields(action),
		})
	}

	results := make([]actionResult, len(actions))
	g, gctx := errgroup.WithContext(ctx)
	for i, action := range actions {
		g.Go(func() error {
			results[i] = e.perform(gctx, run, step.Index, action)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		// Cancelled mid-fan-out: the step is abandoned, nothing more is
		// appended to the chain.
		return ctx.Err()
	}

	allInvalid := true
	for i, result := range results {
		if result.invocation != nil {
			run.invocations = append(run.invocations, *result.invocation)
		}
		run.addEvidence(result.evidence)
		if !result.validationFailed {
			allInvalid = false
		}
		observability.GetGlobalMetrics().RecordReasoningStep(ctx, string(actions[i].Kind))
	}

	step.Observation = joinObservations(actions, results)

	if allInvalid {
		// Self-correction path: straight back to thinking.
		if err := e.to(run, reasoning.StateThinking); err != nil {
			return err
		}
		run.appendStep(step)
		run.emitObservation(step)
		return nil
	}

	if err := e.to(run, reasoning.StateObserving); err != nil {
		return err
	}
	run.tracker.ConsumeStep()
	run.appendStep(step)
	run.emitObservation(step)

	return e.to(run, reasoning.StateThinking)
}

// perform executes a single action. Failures become observations, not
// errors: the loop reacts to them in the next thought.
func (e *Engine) perform(ctx context.Context, run *execution, stepIndex int, action model.ActionRequest) actionResult {
	switch action.Kind {
	case model.ActionRetrieve:
		return e.performRetrieve(ctx, run, stepIndex, action)
	case model.ActionTool:
		return e.performTool(ctx, run, stepIndex, action)
	default:
		return actionResult{
			observation:      fmt.Sprintf("action kind %q cannot be executed", action.Kind),
			validationFailed: true,
		}
	}
}

func (e *Engine) performRetrieve(ctx context.Context, run *execution, stepIndex int, action model.ActionRequest) actionResult {
	if e.retriever == nil {
		return actionResult{observation: "retrieval is not available: no corpus is configured"}
	}

	topK := action.TopK
	if topK <= 0 {
		topK = defaultRetrieveTopK
	}

	items, err := e.retriever.Retrieve(ctx, action.Query, topK, nil)
	if err != nil || len(items) == 0 {
		if err != nil {
			slog.Warn("Retrieval failed", "session_id", run.sessionID, "query", action.Query, "error", err)
		}
		return actionResult{observation: fmt.Sprintf("no evidence found for %q", action.Query)}
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ChunkID
	}
	run.rec.Emit(trace.Event{
		Type:      trace.TypeEvidence,
		StepIndex: stepIndex,
		Content:   fmt.Sprintf("%d evidence items for %q", len(items), action.Query),
		Fields:    map[string]any{"query": action.Query, "count": len(items), "chunk_ids": ids},
	})

	return actionResult{
		observation: renderRetrieveObservation(action.Query, items),
		evidence:    items,
	}
}

func (e *Engine) performTool(ctx context.Context, run *execution, stepIndex int, action model.ActionRequest) actionResult {
	if e.executor == nil {
		return actionResult{observation: fmt.Sprintf("tool %q is not available: no executor is configured", action.Tool)}
	}

	inv := e.executor.Invoke(ctx, action.Tool, action.Args)
	inv.StepIndex = stepIndex

	run.rec.Emit(trace.Event{
		Type:      trace.TypeTool,
		StepIndex: stepIndex,
		Content:   toolEventContent(inv),
		Fields: map[string]any{
			"tool":       inv.Tool,
			"latency_ms": inv.Latency.Milliseconds(),
			"retries":    inv.RetryCount,
			"error_kind": inv.ErrKind,
		},
	})

	return actionResult{
		observation:      observationForInvocation(inv),
		invocation:       inv,
		validationFailed: inv.ErrKind == fault.KindValidation,
	}
}

// ============================================================================
// CONCLUDING
// ============================================================================

// conclude verifies citations, optionally runs the critique pass, and
// finishes the turn. retry=true means the loop re-enters thinking.
// forced marks a budget-exhausted conclusion: no re-entries are
// possible, unverifiable citations are dropped instead.
func (e *Engine) conclude(ctx context.Context, run *execution, step *model.ThoughtStep, conclusion *reasoning.Conclusion, forced bool) (*model.Message, bool, error) {
	if err := e.to(run, reasoning.StateConcluding); err != nil {
		return nil, false, e.fail(ctx, run, "internal state error", err)
	}

	valid, invalid := verifyCitations(conclusion.Citations, run.evidence, e.resolver)

	if len(invalid) > 0 && !forced && run.citationRounds < maxCitationRounds {
		run.citationRounds++
		step.Observation = fmt.Sprintf(
			"citation check failed: %s did not match any evidence retrieved in this chain; cite only chunk ids from the evidence",
			strings.Join(invalid, ", "))
		run.appendStep(step)
		run.emitObservation(step)
		if err := e.to(run, reasoning.StateThinking); err != nil {
			return nil, false, e.fail(ctx, run, "internal state error", err)
		}
		return nil, true, nil
	}
	if len(invalid) > 0 {
		slog.Warn("Dropping unverifiable citations",
			"session_id", run.sessionID, "citations", strings.Join(invalid, ", "))
	}

	coverage := 1.0
	critiqued := false
	if e.critique.Enabled && !forced {
		coverage = citationCoverage(valid, run.evidence)
		critiqued = true
		if coverage < e.critique.CoverageThreshold &&
			run.revisions < e.critique.MaxRevisions &&
			run.tracker.Check() == nil {
			run.revisions++
			run.tracker.ConsumeStep()
			step.Observation = critiqueObservation(coverage, e.critique.CoverageThreshold, len(valid), countChunks(run.evidence))
			run.appendStep(step)
			run.emitObservation(step)
			if err := e.to(run, reasoning.StateThinking); err != nil {
				return nil, false, e.fail(ctx, run, "internal state error", err)
			}
			return nil, true, nil
		}
	}

	confidence := conclusion.Confidence
	if critiqued {
		confidence = rescoreConfidence(confidence, coverage)
	}

	step.Action = &model.ActionRequest{Kind: model.ActionConclude}
	run.appendStep(step)

	run.chain.Conclusion = conclusion.Answer
	run.chain.SetConfidence(confidence)
	run.chain.Citations = valid
	if forced {
		run.chain.Incomplete = true
	}

	observability.GetGlobalMetrics().RecordReasoningStep(ctx, string(model.ActionConclude))
	run.rec.Emit(trace.Event{
		Type:    trace.TypeConclusion,
		Content: conclusion.Answer,
		Fields: map[string]any{
			"confidence": run.chain.Confidence,
			"citations":  len(valid),
			"incomplete": run.chain.Incomplete,
		},
	})

	msg, err := e.finish(ctx, run)
	if err != nil {
		return nil, false, err
	}
	return msg, false, nil
}

// concludeExhausted handles budget exhaustion: one last chance for the
// backend to conclude (only while wall clock remains), composing a
// best-effort answer from gathered evidence otherwise. Either way the
// chain is flagged incomplete.
func (e *Engine) concludeExhausted(ctx context.Context, run *execution, budgetErr error) (*model.Message, error) {
	run.chain.Incomplete = true

	if !wallClockExceeded(budgetErr) {
		decision, err := e.backend.Decide(ctx, run.exhaustedStepContext(budgetErr))
		if err == nil && decision.Conclusion != nil {
			step := run.newStep(decision.Thought)
			run.rec.Emit(trace.Event{
				Type:      trace.TypeThought,
				StepIndex: step.Index,
				Content:   decision.Thought,
			})
			msg, _, finishErr := e.conclude(ctx, run, step, decision.Conclusion, true)
			return msg, finishErr
		}
		if err != nil && (ctx.Err() != nil || fault.Kind(err) == fault.KindCancelled) {
			return nil, e.cancel(ctx, run)
		}
	}

	step := run.newStep(fmt.Sprintf("the %v; answering with the evidence gathered so far", budgetErr))
	msg, _, err := e.conclude(ctx, run, step, composeBestEffort(run, budgetErr), true)
	return msg, err
}

// finish makes the turn durable: the assistant message with the chain
// and invocations is appended before anything reports success.
func (e *Engine) finish(ctx context.Context, run *execution) (*model.Message, error) {
	if err := e.to(run, reasoning.StateDone); err != nil {
		return nil, e.fail(ctx, run, "internal state error", err)
	}

	msg := model.NewMessage(model.RoleAssistant, run.chain.Conclusion)
	msg.Chain = run.chain
	msg.Invocations = run.invocations

	if err := e.sessions.AppendMessage(ctx, run.sessionID, msg); err != nil {
		return nil, e.fail(ctx, run, "failed to record research result", err)
	}

	if err := e.sessions.UpdateStatus(ctx, run.sessionID, model.SessionAwaitingInput, ""); err != nil {
		// The turn is durable; a stuck status is repairable.
		slog.Error("Failed to update session status", "session_id", run.sessionID, "error", err)
	}

	observability.GetGlobalMetrics().RecordSessionEnd(ctx, "completed", time.Since(run.started))
	return msg, nil
}

// ============================================================================
// FAILURE PATHS
// ============================================================================

// cancel fails the session with reason "cancelled". Status and trace
// writes use an uncancelled context so the abort itself is recorded.
func (e *Engine) cancel(ctx context.Context, run *execution) error {
	base := context.WithoutCancel(ctx)
	e.failState(base, run, "cancelled")
	observability.GetGlobalMetrics().RecordSessionEnd(base, "cancelled", time.Since(run.started))
	return fault.NewCancelledError("cancelled")
}

// fail marks the session failed with the given reason and returns cause.
func (e *Engine) fail(ctx context.Context, run *execution, reason string, cause error) error {
	base := context.WithoutCancel(ctx)
	e.failState(base, run, reason)
	observability.GetGlobalMetrics().RecordSessionEnd(base, "failed", time.Since(run.started))
	return cause
}

func (e *Engine) failState(ctx context.Context, run *execution, reason string) {
	if run.machine.Current() != reasoning.StateFailed {
		if err := e.to(run, reasoning.StateFailed); err != nil {
			slog.Error("Failed to record failed state", "session_id", run.sessionID, "error", err)
		}
	}
	run.rec.Emit(trace.Event{Type: trace.TypeError, Content: reason})

	if err := e.sessions.UpdateStatus(ctx, run.sessionID, model.SessionFailed, reason); err != nil {
		slog.Error("Failed to mark session failed",
			"session_id", run.sessionID, "reason", reason, "error", err)
	}
}

// ============================================================================
// EXECUTION HELPERS
// ============================================================================

// to transitions the machine and emits the state event.
func (e *Engine) to(run *execution, next reasoning.State) error {
	from := run.machine.Current()
	if err := run.machine.To(next); err != nil {
		return err
	}
	run.rec.Emit(trace.Event{
		Type:   trace.TypeState,
		State:  string(next),
		Fields: map[string]any{"from": string(from)},
	})
	return nil
}

func (run *execution) stepContext() *reasoning.StepContext {
	return &reasoning.StepContext{
		Question:       run.question,
		WorkingContext: run.workingContext,
		Steps:          run.chain.Steps,
		Evidence:       run.evidence,
		Remaining:      run.tracker.Remaining(),
	}
}

// exhaustedStepContext is the final-chance context: zero remaining
// steps plus a synthetic observation telling the backend to conclude.
func (run *execution) exhaustedStepContext(budgetErr error) *reasoning.StepContext {
	steps := append([]model.ThoughtStep(nil), run.chain.Steps...)
	steps = append(steps, model.ThoughtStep{
		Index:       len(steps),
		Thought:     "time to wrap up",
		Observation: fmt.Sprintf("the %v; no further actions are possible, give your best Final Answer now from the evidence gathered", budgetErr),
		StartedAt:   time.Now().UTC(),
	})
	return &reasoning.StepContext{
		Question:       run.question,
		WorkingContext: run.workingContext,
		Steps:          steps,
		Evidence:       run.evidence,
		Remaining:      0,
	}
}

func (run *execution) newStep(thought string) *model.ThoughtStep {
	return &model.ThoughtStep{
		Index:           len(run.chain.Steps),
		Thought:         thought,
		ContextSnapshot: run.snapshot(),
		StartedAt:       time.Now().UTC(),
	}
}

// snapshot captures the backend's exact input for replay. Evidence is
// referenced by chunk id: chunks are immutable once embedded, so ids
// are enough to reconstruct the prompt.
func (run *execution) snapshot() string {
	ids := make([]string, len(run.evidence))
	for i, item := range run.evidence {
		ids[i] = item.ChunkID
	}
	payload := struct {
		Question       string   `json:"question"`
		WorkingContext string   `json:"working_context,omitempty"`
		EvidenceIDs    []string `json:"evidence_ids,omitempty"`
		Remaining      int      `json:"remaining"`
	}{run.question, run.workingContext, ids, run.tracker.Remaining()}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

func (run *execution) appendStep(step *model.ThoughtStep) {
	run.chain.Steps = append(run.chain.Steps, *step)
}

func (run *execution) emitObservation(step *model.ThoughtStep) {
	run.rec.Emit(trace.Event{
		Type:      trace.TypeObservation,
		StepIndex: step.Index,
		Content:   step.Observation,
	})
}

// addEvidence merges new items into the chain's evidence, first
// retrieval of a chunk wins.
func (run *execution) addEvidence(items []model.EvidenceItem) {
	for _, item := range items {
		if run.seenChunks[item.ChunkID] {
			continue
		}
		run.seenChunks[item.ChunkID] = true
		run.evidence = append(run.evidence, item)
	}
}

// ============================================================================
// OBSERVATION RENDERING
// ============================================================================

func actionLabel(action model.ActionRequest) string {
	if action.Kind == model.ActionRetrieve {
		return fmt.Sprintf("retrieve %q", action.Query)
	}
	return action.Tool
}

func actionFields(action model.ActionRequest) map[string]any {
	if action.Kind == model.ActionRetrieve {
		return map[string]any{"query": action.Query, "top_k": action.TopK}
	}
	return map[string]any{"tool": action.Tool, "args": action.Args}
}

func renderRetrieveObservation(query string, items []model.EvidenceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d evidence items retrieved for %q:", len(items), query)
	for _, item := range items {
		fmt.Fprintf(&b, "\n[%s] %s (score %.2f)", item.ChunkID, item.Source, item.Score)
		if item.Degraded {
			b.WriteString(" [degraded: keyword-only]")
		}
	}
	return b.String()
}

func observationForInvocation(inv *model.ToolInvocation) string {
	if inv.Succeeded() {
		if inv.Result == "" {
			return fmt.Sprintf("tool %s completed with no output", inv.Tool)
		}
		return clipText(inv.Result, observationClip)
	}
	return fmt.Sprintf("tool %s failed (%s): %s", inv.Tool, inv.ErrKind, inv.Err)
}

func toolEventContent(inv *model.ToolInvocation) string {
	if inv.Succeeded() {
		return clipText(inv.Result, 200)
	}
	return inv.Err
}

// joinObservations merges per-action results into one observation. A
// single action keeps its raw text; fan-outs label each line with the
// action that produced it.
func joinObservations(actions []model.ActionRequest, results []actionResult) string {
	if len(results) == 1 {
		return results[0].observation
	}
	parts := make([]string, len(results))
	for i, result := range results {
		parts[i] = fmt.Sprintf("[%s] %s", actionLabel(actions[i]), result.observation)
	}
	return strings.Join(parts, "\n")
}

func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "... (truncated)"
}

// composeBestEffort builds the engine's own conclusion when the budget
// ran out and the backend could not supply one.
func composeBestEffort(run *execution, budgetErr error) *reasoning.Conclusion {
	var b strings.Builder
	fmt.Fprintf(&b, "Research stopped early: the %v.", budgetErr)

	citations := make([]string, 0, 3)
	if len(run.evidence) > 0 {
		b.WriteString(" The strongest evidence gathered so far:")
		for i, item := range run.evidence {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "\n- %s: %s", item.Source, clipText(item.Content, 200))
			citations = append(citations, item.ChunkID)
		}
	} else {
		b.WriteString(" No evidence was gathered before the limit was reached.")
	}

	return &reasoning.Conclusion{
		Answer:     b.String(),
		Confidence: incompleteConfidence,
		Citations:  citations,
	}
}

func wallClockExceeded(err error) bool {
	var budget *fault.BudgetExceeded
	return errors.As(err, &budget) && budget.Kind == fault.BudgetWallClock
}
