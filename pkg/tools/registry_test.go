package tools

import (
	"context"
	"strings"
	"testing"
)

func newBuiltinSource(t *testing.T, tools ...Tool) *LocalSource {
	t.Helper()
	source := NewLocalSource("test")
	for _, tool := range tools {
		if err := source.RegisterTool(tool); err != nil {
			t.Fatalf("RegisterTool(%s) returned error: %v", tool.GetName(), err)
		}
	}
	return source
}

func TestToolRegistry_RegisterSource(t *testing.T) {
	reg := NewToolRegistry()
	source := newBuiltinSource(t, NewWordCountTool(), NewCalculatorTool())

	if err := reg.RegisterSource(context.Background(), source); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	infos := reg.ListTools()
	if len(infos) != 2 {
		t.Fatalf("ListTools() returned %d tools, want 2", len(infos))
	}
	if infos[0].Name != "calculator" || infos[1].Name != "word_count" {
		t.Errorf("ListTools() order = [%s %s], want sorted by name", infos[0].Name, infos[1].Name)
	}
	if infos[0].Source != "test" {
		t.Errorf("ListTools() source = %q, want test", infos[0].Source)
	}

	tool, err := reg.GetTool("calculator")
	if err != nil {
		t.Fatalf("GetTool(calculator) returned error: %v", err)
	}
	if tool.GetName() != "calculator" {
		t.Errorf("GetTool(calculator).GetName() = %q", tool.GetName())
	}
}

func TestToolRegistry_UnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	if _, err := reg.GetTool("ghost"); err == nil {
		t.Error("GetTool(ghost) expected error, got none")
	}
	if _, err := reg.GetToolSource("ghost"); err == nil {
		t.Error("GetToolSource(ghost) expected error, got none")
	}
}

func TestToolRegistry_FreezeBlocksRegistration(t *testing.T) {
	reg := NewToolRegistry()
	source := newBuiltinSource(t, NewCalculatorTool())
	if err := reg.RegisterSource(context.Background(), source); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	reg.Freeze()

	if !reg.Frozen() {
		t.Error("Frozen() = false after Freeze()")
	}

	err := reg.Register("late", ToolEntry{Tool: NewWordCountTool(), Source: source, Name: "late"})
	if err == nil || !strings.Contains(err.Error(), "frozen") {
		t.Errorf("Register() after Freeze() = %v, want frozen error", err)
	}

	other := newBuiltinSource(t, NewWordCountTool())
	if err := reg.RegisterSource(context.Background(), other); err == nil {
		t.Error("RegisterSource() after Freeze() expected error, got none")
	}

	// Reads keep working after freeze.
	if _, err := reg.GetTool("calculator"); err != nil {
		t.Errorf("GetTool() after Freeze() returned error: %v", err)
	}
	if len(reg.ListTools()) != 1 {
		t.Errorf("ListTools() after Freeze() = %d tools, want 1", len(reg.ListTools()))
	}
}

func TestToolRegistry_DuplicateToolFails(t *testing.T) {
	reg := NewToolRegistry()
	first := newBuiltinSource(t, NewCalculatorTool())
	if err := reg.RegisterSource(context.Background(), first); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	second := NewLocalSource("other")
	if err := second.RegisterTool(NewCalculatorTool()); err != nil {
		t.Fatalf("RegisterTool() returned error: %v", err)
	}
	if err := reg.RegisterSource(context.Background(), second); err == nil {
		t.Error("RegisterSource() with duplicate tool name expected error, got none")
	}
}

func TestToolRegistry_GetToolSource(t *testing.T) {
	reg := NewToolRegistry()
	source := newBuiltinSource(t, NewCalculatorTool())
	if err := reg.RegisterSource(context.Background(), source); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	name, err := reg.GetToolSource("calculator")
	if err != nil {
		t.Fatalf("GetToolSource() returned error: %v", err)
	}
	if name != "test" {
		t.Errorf("GetToolSource() = %q, want test", name)
	}
}

func TestToolRegistry_ListToolsBySource(t *testing.T) {
	reg := NewToolRegistry()
	alpha := newBuiltinSource(t, NewCalculatorTool())
	if err := reg.RegisterSource(context.Background(), alpha); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	bravo := NewLocalSource("bravo")
	if err := bravo.RegisterTool(NewWordCountTool()); err != nil {
		t.Fatalf("RegisterTool() returned error: %v", err)
	}
	if err := reg.RegisterSource(context.Background(), bravo); err != nil {
		t.Fatalf("RegisterSource() returned error: %v", err)
	}

	grouped := reg.ListToolsBySource()
	if len(grouped) != 2 {
		t.Fatalf("ListToolsBySource() returned %d sources, want 2", len(grouped))
	}
	if len(grouped["test"]) != 1 || grouped["test"][0].Name != "calculator" {
		t.Errorf("ListToolsBySource()[test] = %v", grouped["test"])
	}
	if len(grouped["bravo"]) != 1 || grouped["bravo"][0].Name != "word_count" {
		t.Errorf("ListToolsBySource()[bravo] = %v", grouped["bravo"])
	}
}
