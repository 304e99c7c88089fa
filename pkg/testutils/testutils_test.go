package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veraxis/scout/pkg/reasoning"
)

func TestScriptedBackend_ReplaysInOrder(t *testing.T) {
	backend := &ScriptedBackend{
		Decisions: []*reasoning.Decision{
			{Thought: "first"},
			{Thought: "second"},
		},
		Errs: map[int]error{1: errors.New("scripted failure")},
	}

	first, err := backend.Decide(context.Background(), &reasoning.StepContext{Question: "q"})
	if err != nil {
		t.Fatalf("Decide() returned error: %v", err)
	}
	if first.Thought != "first" {
		t.Fatalf("Decide() thought = %q, want %q", first.Thought, "first")
	}

	if _, err := backend.Decide(context.Background(), &reasoning.StepContext{}); err == nil {
		t.Fatal("Decide() call 1 should fail with the scripted error")
	}

	if _, err := backend.Decide(context.Background(), &reasoning.StepContext{}); err == nil {
		t.Fatal("Decide() beyond the script should fail")
	}

	if got := backend.Calls(); got != 3 {
		t.Fatalf("Calls() = %d, want 3", got)
	}
	if ctx := backend.Context(0); ctx == nil || ctx.Question != "q" {
		t.Fatalf("Context(0) = %+v, want question %q", ctx, "q")
	}
	if ctx := backend.Context(9); ctx != nil {
		t.Fatal("Context(9) should be nil for a call that never happened")
	}
}

func TestFixedEmbedder_Deterministic(t *testing.T) {
	emb := &FixedEmbedder{}

	a1, err := emb.Embed(context.Background(), "lithium")
	if err != nil {
		t.Fatalf("Embed() returned error: %v", err)
	}
	a2, _ := emb.Embed(context.Background(), "lithium")
	b, _ := emb.Embed(context.Background(), "sodium")

	if len(a1) != emb.Dimension() {
		t.Fatalf("Embed() dimension = %d, want %d", len(a1), emb.Dimension())
	}
	same, diff := true, false
	for i := range a1 {
		if a1[i] != a2[i] {
			same = false
		}
		if a1[i] != b[i] {
			diff = true
		}
	}
	if !same {
		t.Fatal("identical texts should embed identically")
	}
	if !diff {
		t.Fatal("different texts should embed differently")
	}

	batch, err := emb.EmbedBatch(context.Background(), []string{"lithium", "sodium"})
	if err != nil {
		t.Fatalf("EmbedBatch() returned error: %v", err)
	}
	if len(batch) != 2 || batch[0][0] != a1[0] {
		t.Fatal("EmbedBatch() should match single-text embeddings")
	}
}

func TestSlowTool_HonorsContext(t *testing.T) {
	tool := &SlowTool{Name: "slow", Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := tool.Execute(ctx, nil)
	if err == nil {
		t.Fatal("Execute() should fail when the context is already cancelled")
	}
	if result.Success {
		t.Fatal("Execute() result should not report success")
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), start)
	}
	clock.Advance(90 * time.Second)
	if got := clock.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("advance moved clock by %v, want 90s", got)
	}
}
