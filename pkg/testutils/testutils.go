// Package testutils provides deterministic fakes and fixtures shared
// across Scout's package tests. Everything here is offline: nothing
// dials a network, reads a model, or depends on wall-clock timing
// beyond what the caller injects.
package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/embedder"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/reasoning"
	"github.com/veraxis/scout/pkg/tools"
)

// TestConfig returns a minimal offline-safe configuration: ollama
// providers construct lazily without dialing, chromem stays in memory,
// buffer memory keeps token counting local, and trace files stay off.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Provider = config.LLMProviderOllama
	cfg.Embedder.Provider = config.EmbedderProviderOllama
	cfg.Vector.Provider = config.VectorProviderChromem
	cfg.Memory.Strategy = config.MemoryStrategyBuffer
	cfg.Trace.File = config.BoolPtr(false)
	cfg.SetDefaults()
	return cfg
}

// TestEvidence returns an evidence item whose content is derived from
// the chunk id, so assertions can predict it.
func TestEvidence(chunkID, documentID, source string, score float64) model.EvidenceItem {
	return model.EvidenceItem{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Source:     source,
		Score:      score,
		Content:    "content of " + chunkID,
	}
}

// ============================================================================
// SCRIPTED REASONING BACKEND
// ============================================================================

// ScriptedBackend replays queued decisions in call order. Calls beyond
// the script fail, so a loop that will not stop surfaces as an error
// instead of hanging the test.
type ScriptedBackend struct {
	// Decisions are returned one per call, in order.
	Decisions []*reasoning.Decision

	// Errs overrides the decision for specific zero-based calls.
	Errs map[int]error

	// Hook, when set, runs before each call returns. Tests use it to
	// cancel contexts or fail collaborators mid-run.
	Hook func(call int)

	mu       sync.Mutex
	contexts []*reasoning.StepContext
}

func (b *ScriptedBackend) Decide(ctx context.Context, step *reasoning.StepContext) (*reasoning.Decision, error) {
	b.mu.Lock()
	call := len(b.contexts)
	b.contexts = append(b.contexts, step)
	b.mu.Unlock()

	if b.Hook != nil {
		b.Hook(call)
	}
	if err, ok := b.Errs[call]; ok {
		return nil, err
	}
	if call >= len(b.Decisions) {
		return nil, fmt.Errorf("no scripted decision for call %d", call)
	}
	return b.Decisions[call], nil
}

// Calls reports how many times Decide ran.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// Context returns the step context seen by the given call, or nil when
// that call never happened.
func (b *ScriptedBackend) Context(call int) *reasoning.StepContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	if call < 0 || call >= len(b.contexts) {
		return nil
	}
	return b.contexts[call]
}

// ============================================================================
// FIXED EMBEDDER
// ============================================================================

// FixedEmbedder derives a deterministic vector from the text itself:
// the same text always embeds to the same vector, different texts to
// different ones. No network, no model.
type FixedEmbedder struct {
	// Dim is the vector dimension; zero means 8.
	Dim int

	// Err, when set, fails every call.
	Err error
}

func (e *FixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dimension()
	vec := make([]float32, dim)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		// Map the hash into [0, 1) so cosine math stays sane.
		vec[i] = float32(h.Sum32()%1000) / 1000
	}
	return vec, nil
}

func (e *FixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *FixedEmbedder) Dimension() int {
	if e.Dim <= 0 {
		return 8
	}
	return e.Dim
}

func (e *FixedEmbedder) Model() string { return "fixed-test-embedder" }

func (e *FixedEmbedder) Close() error { return nil }

// ============================================================================
// TOOLS
// ============================================================================

// StaticTool answers every call with a fixed response.
type StaticTool struct {
	Name        string
	Description string
	Response    string
	Params      []tools.ToolParameter
}

func (t *StaticTool) GetName() string        { return t.Name }
func (t *StaticTool) GetDescription() string { return t.Description }

func (t *StaticTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.Name, Description: t.Description, Parameters: t.Params}
}

func (t *StaticTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.ToolResult{Success: true, Content: t.Response, ToolName: t.Name}, nil
}

// FailingTool fails every call with the configured error.
type FailingTool struct {
	Name string
	Err  error
}

func (t *FailingTool) GetName() string        { return t.Name }
func (t *FailingTool) GetDescription() string { return "always fails" }

func (t *FailingTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.Name, Description: "always fails"}
}

func (t *FailingTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	err := t.Err
	if err == nil {
		err = fmt.Errorf("tool %s failed", t.Name)
	}
	return tools.ToolResult{Success: false, Error: err.Error(), ToolName: t.Name}, err
}

// SlowTool blocks for Delay, or until the context ends, whichever
// comes first. Tests use it to exercise timeouts and cancellation.
type SlowTool struct {
	Name     string
	Delay    time.Duration
	Response string
}

func (t *SlowTool) GetName() string        { return t.Name }
func (t *SlowTool) GetDescription() string { return "responds after a delay" }

func (t *SlowTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.Name, Description: "responds after a delay"}
}

func (t *SlowTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	select {
	case <-time.After(t.Delay):
		return tools.ToolResult{Success: true, Content: t.Response, ToolName: t.Name}, nil
	case <-ctx.Done():
		return tools.ToolResult{Success: false, Error: ctx.Err().Error(), ToolName: t.Name}, ctx.Err()
	}
}

// ============================================================================
// CLOCK
// ============================================================================

// ManualClock is a time source tests advance by hand. Hand Now to any
// component that accepts a now func.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	_ reasoning.Backend = (*ScriptedBackend)(nil)
	_ embedder.Embedder = (*FixedEmbedder)(nil)
	_ tools.Tool        = (*StaticTool)(nil)
	_ tools.Tool        = (*FailingTool)(nil)
	_ tools.Tool        = (*SlowTool)(nil)
)
