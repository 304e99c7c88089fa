package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
)

// Executor runs tools with the configured timeout and retry policy. Every
// call produces exactly one ToolInvocation record; failures are encoded in
// the record rather than returned, so the reasoning engine always has an
// observation to react to.
type Executor struct {
	registry    *ToolRegistry
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

func NewExecutor(reg *ToolRegistry, cfg config.ToolsConfig) *Executor {
	cfg.SetDefaults()
	return &Executor{
		registry:    reg,
		timeout:     cfg.Timeout.Duration(),
		maxAttempts: cfg.Retry.MaxAttempts,
		baseDelay:   cfg.Retry.BaseDelay.Duration(),
	}
}

// Registry returns the registry the executor resolves tools from.
func (e *Executor) Registry() *ToolRegistry {
	return e.registry
}

// Invoke resolves the tool, validates args against its declared parameters,
// and runs the handler under the per-tool timeout. Transient failures are
// retried with exponential backoff up to the configured attempt limit;
// timeouts are not retried, the engine decides what to do with them.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) *model.ToolInvocation {
	start := time.Now()
	inv := &model.ToolInvocation{
		ID:        uuid.NewString(),
		Tool:      name,
		Args:      args,
		StartedAt: start.UTC(),
	}

	tracer := observability.GetTracer("scout.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, name),
		),
	)
	defer span.End()

	tool, err := e.registry.GetTool(name)
	if err != nil {
		verr := fault.NewValidationError(name, "", "unknown tool")
		e.finish(ctx, span, inv, ToolResult{}, verr, start)
		return inv
	}

	info := tool.GetInfo()
	if err := ValidateArgs(info, args); err != nil {
		e.finish(ctx, span, inv, ToolResult{}, err, start)
		return inv
	}
	args = ApplyDefaults(info, args)
	inv.Args = args

	var result ToolResult
	var execErr error
	attempt := 1
	for {
		result, execErr = e.runOnce(ctx, tool, args)
		if execErr == nil || !fault.IsRetryable(execErr) || attempt >= e.maxAttempts {
			break
		}
		delay := e.backoff(attempt)
		slog.Debug("Retrying tool after transient failure",
			"tool", name,
			"attempt", attempt,
			"delay", delay,
			"error", execErr)
		if err := sleepContext(ctx, delay); err != nil {
			execErr = fault.NewCancelledError("tool retry interrupted")
			break
		}
		attempt++
	}
	inv.RetryCount = attempt - 1

	e.finish(ctx, span, inv, result, execErr, start)
	return inv
}

// runOnce executes the handler in its own goroutine under the per-tool
// timeout. A handler that outlives the deadline has its result discarded;
// the buffered channel lets the goroutine exit either way.
func (e *Executor) runOnce(ctx context.Context, tool Tool, args map[string]any) (ToolResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		result ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := tool.Execute(runCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ToolResult{}, fault.NewTimeoutError(tool.GetName(), e.timeout)
		}
		return ToolResult{}, fault.NewCancelledError("tool execution interrupted")
	}
}

func (e *Executor) finish(ctx context.Context, span trace.Span, inv *model.ToolInvocation, result ToolResult, execErr error, start time.Time) {
	inv.Latency = time.Since(start)

	var recordErr error
	switch {
	case execErr != nil:
		inv.Err = execErr.Error()
		inv.ErrKind = fault.Kind(execErr)
		recordErr = execErr
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	case !result.Success:
		inv.Err = result.Error
		if inv.Err == "" {
			inv.Err = "tool reported failure"
		}
		recordErr = fmt.Errorf("%s", inv.Err)
		span.RecordError(recordErr)
		span.SetStatus(codes.Error, inv.Err)
	default:
		inv.Result = result.Content
		span.SetStatus(codes.Ok, "success")
	}

	span.SetAttributes(
		attribute.Bool("tool.success", inv.Succeeded()),
		attribute.Int64("tool.duration_ms", inv.Latency.Milliseconds()),
		attribute.Int("tool.retries", inv.RetryCount),
	)

	observability.GetGlobalMetrics().RecordToolExecution(ctx, inv.Tool, inv.Latency, recordErr)
}

func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
