package tools

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
)

type stubTool struct {
	name    string
	params  []ToolParameter
	calls   atomic.Int64
	execute func(ctx context.Context, args map[string]any) (ToolResult, error)
}

func (s *stubTool) GetName() string        { return s.name }
func (s *stubTool) GetDescription() string { return "stub" }

func (s *stubTool) GetInfo() ToolInfo {
	return ToolInfo{Name: s.name, Description: "stub", Parameters: s.params}
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	s.calls.Add(1)
	return s.execute(ctx, args)
}

func newTestExecutor(t *testing.T, timeout time.Duration, maxAttempts int, tools ...Tool) *Executor {
	t.Helper()
	reg := NewToolRegistry()
	source := NewLocalSource("test")
	for _, tool := range tools {
		if err := source.RegisterTool(tool); err != nil {
			t.Fatalf("RegisterTool() returned error: %v", err)
		}
	}
	if err := reg.RegisterSource(context.Background(), source); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}
	reg.Freeze()

	cfg := config.ToolsConfig{
		Timeout: config.Duration(timeout),
		Retry: config.ToolRetryConfig{
			MaxAttempts: maxAttempts,
			BaseDelay:   config.Duration(time.Millisecond),
		},
	}
	return NewExecutor(reg, cfg)
}

func TestExecutor_Success(t *testing.T) {
	tool := &stubTool{
		name: "greeter",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return successResult("greeter", "hello"), nil
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "greeter", nil)

	if !inv.Succeeded() {
		t.Fatalf("Invoke() failed: %s (%s)", inv.Err, inv.ErrKind)
	}
	if inv.Result != "hello" {
		t.Errorf("Invoke() result = %q, want hello", inv.Result)
	}
	if inv.ID == "" {
		t.Error("Invoke() did not assign an invocation ID")
	}
	if inv.Tool != "greeter" {
		t.Errorf("Invoke() tool = %q, want greeter", inv.Tool)
	}
	if inv.RetryCount != 0 {
		t.Errorf("Invoke() retry count = %d, want 0", inv.RetryCount)
	}
	if inv.StartedAt.IsZero() {
		t.Error("Invoke() did not record start time")
	}
}

func TestExecutor_SoftFailure(t *testing.T) {
	tool := &stubTool{
		name: "flaky",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return errorResult("flaky", "nothing matched"), nil
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "flaky", nil)

	if inv.Succeeded() {
		t.Fatal("Invoke() succeeded, want soft failure")
	}
	if inv.Err != "nothing matched" {
		t.Errorf("Invoke() error = %q", inv.Err)
	}
	if inv.ErrKind != "" {
		t.Errorf("Invoke() error kind = %q, want empty for soft failures", inv.ErrKind)
	}
	if got := tool.calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestExecutor_UnknownTool(t *testing.T) {
	exec := newTestExecutor(t, time.Second, 3)

	inv := exec.Invoke(context.Background(), "ghost", nil)

	if inv.Succeeded() {
		t.Fatal("Invoke() succeeded for unknown tool")
	}
	if inv.ErrKind != fault.KindValidation {
		t.Errorf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindValidation)
	}
	if !strings.Contains(inv.Err, "unknown tool") {
		t.Errorf("Invoke() error = %q, want unknown tool", inv.Err)
	}
}

func TestExecutor_ValidationBlocksHandler(t *testing.T) {
	tool := &stubTool{
		name:   "strict",
		params: []ToolParameter{{Name: "text", Type: "string", Required: true}},
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return successResult("strict", "ran"), nil
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "strict", map[string]any{"wrong": 1})

	if inv.ErrKind != fault.KindValidation {
		t.Fatalf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindValidation)
	}
	if got := tool.calls.Load(); got != 0 {
		t.Errorf("handler called %d times for invalid args, want 0", got)
	}
	if inv.RetryCount != 0 {
		t.Errorf("Invoke() retry count = %d, want 0", inv.RetryCount)
	}
}

func TestExecutor_AppliesDefaults(t *testing.T) {
	tool := &stubTool{
		name: "defaulted",
		params: []ToolParameter{
			{Name: "text", Type: "string", Required: true},
			{Name: "mode", Type: "string", Default: "fast"},
		},
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return successResult("defaulted", fmt.Sprint(args["mode"])), nil
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "defaulted", map[string]any{"text": "hi"})

	if !inv.Succeeded() {
		t.Fatalf("Invoke() failed: %s", inv.Err)
	}
	if inv.Result != "fast" {
		t.Errorf("Invoke() result = %q, want default mode fast", inv.Result)
	}
	if inv.Args["mode"] != "fast" {
		t.Errorf("Invoke() recorded args missing default: %v", inv.Args)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	tool := &stubTool{
		name: "sleepy",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			time.Sleep(300 * time.Millisecond)
			return successResult("sleepy", "late"), nil
		},
	}
	exec := newTestExecutor(t, 30*time.Millisecond, 3, tool)

	inv := exec.Invoke(context.Background(), "sleepy", nil)

	if inv.ErrKind != fault.KindTimeout {
		t.Fatalf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindTimeout)
	}
	// The timeout is not retried and the late handler result is discarded.
	if inv.RetryCount != 0 {
		t.Errorf("Invoke() retry count = %d, want 0", inv.RetryCount)
	}
	if inv.Result != "" {
		t.Errorf("Invoke() result = %q, want empty", inv.Result)
	}
	if inv.Latency >= 250*time.Millisecond {
		t.Errorf("Invoke() latency = %v, want well under the handler sleep", inv.Latency)
	}
}

func TestExecutor_RetriesTransient(t *testing.T) {
	tool := &stubTool{name: "wobbly"}
	tool.execute = func(ctx context.Context, args map[string]any) (ToolResult, error) {
		if tool.calls.Load() < 3 {
			return ToolResult{}, fault.NewTransientError("wobbly", int(tool.calls.Load()), fmt.Errorf("rate limited"))
		}
		return successResult("wobbly", "finally"), nil
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "wobbly", nil)

	if !inv.Succeeded() {
		t.Fatalf("Invoke() failed: %s (%s)", inv.Err, inv.ErrKind)
	}
	if inv.Result != "finally" {
		t.Errorf("Invoke() result = %q", inv.Result)
	}
	if inv.RetryCount != 2 {
		t.Errorf("Invoke() retry count = %d, want 2", inv.RetryCount)
	}
	if got := tool.calls.Load(); got != 3 {
		t.Errorf("handler called %d times, want 3", got)
	}
}

func TestExecutor_TransientExhaustsAttempts(t *testing.T) {
	tool := &stubTool{
		name: "down",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return ToolResult{}, fault.NewTransientError("down", 1, fmt.Errorf("connection refused"))
		},
	}
	exec := newTestExecutor(t, time.Second, 2, tool)

	inv := exec.Invoke(context.Background(), "down", nil)

	if inv.ErrKind != fault.KindTransient {
		t.Fatalf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindTransient)
	}
	if inv.RetryCount != 1 {
		t.Errorf("Invoke() retry count = %d, want 1", inv.RetryCount)
	}
	if got := tool.calls.Load(); got != 2 {
		t.Errorf("handler called %d times, want 2", got)
	}
}

func TestExecutor_SandboxViolationNotRetried(t *testing.T) {
	tool := &stubTool{
		name: "shell",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			v := fault.NewSandboxViolation("shell", "allowed_commands", "command \"rm\" is not allowed")
			return errorResult("shell", v.Error()), v
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	inv := exec.Invoke(context.Background(), "shell", nil)

	if inv.ErrKind != fault.KindSandboxViolation {
		t.Fatalf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindSandboxViolation)
	}
	if got := tool.calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestExecutor_Cancellation(t *testing.T) {
	tool := &stubTool{
		name: "slow",
		execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			time.Sleep(300 * time.Millisecond)
			return successResult("slow", "done"), nil
		},
	}
	exec := newTestExecutor(t, time.Second, 3, tool)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	inv := exec.Invoke(ctx, "slow", nil)

	if inv.ErrKind != fault.KindCancelled {
		t.Errorf("Invoke() error kind = %q, want %q", inv.ErrKind, fault.KindCancelled)
	}
	if inv.Latency >= 250*time.Millisecond {
		t.Errorf("Invoke() latency = %v, want prompt cancellation", inv.Latency)
	}
}
