package tools

import (
	"errors"
	"testing"

	"github.com/veraxis/scout/pkg/fault"
)

func testInfo() ToolInfo {
	return ToolInfo{
		Name: "probe",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "integer"},
			{Name: "ratio", Type: "number"},
			{Name: "deep", Type: "boolean"},
			{Name: "tags", Type: "array"},
			{Name: "filters", Type: "object"},
			{Name: "mode", Type: "string", Enum: []string{"fast", "deep"}},
		},
	}
}

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantField string
	}{
		{
			name: "valid full set",
			args: map[string]any{
				"query":   "harbor depth",
				"limit":   float64(5),
				"ratio":   0.5,
				"deep":    true,
				"tags":    []any{"a", "b"},
				"filters": map[string]any{"type": "pdf"},
				"mode":    "fast",
			},
		},
		{
			name: "minimal required only",
			args: map[string]any{"query": "harbor"},
		},
		{
			name:      "missing required",
			args:      map[string]any{"limit": float64(5)},
			wantField: "query",
		},
		{
			name:      "nil required",
			args:      map[string]any{"query": nil},
			wantField: "query",
		},
		{
			name:      "wrong type for string",
			args:      map[string]any{"query": 42},
			wantField: "query",
		},
		{
			name:      "fractional integer",
			args:      map[string]any{"query": "q", "limit": 2.5},
			wantField: "limit",
		},
		{
			name: "whole float as integer",
			args: map[string]any{"query": "q", "limit": float64(3)},
		},
		{
			name:      "wrong type for boolean",
			args:      map[string]any{"query": "q", "deep": "yes"},
			wantField: "deep",
		},
		{
			name:      "wrong type for array",
			args:      map[string]any{"query": "q", "tags": "a,b"},
			wantField: "tags",
		},
		{
			name:      "wrong type for object",
			args:      map[string]any{"query": "q", "filters": []any{"x"}},
			wantField: "filters",
		},
		{
			name:      "enum violation",
			args:      map[string]any{"query": "q", "mode": "slow"},
			wantField: "mode",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"query": "q", "bogus": 1},
			wantField: "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(testInfo(), tt.args)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateArgs() returned error: %v", err)
				}
				return
			}
			var verr *fault.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateArgs() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("ValidationError field = %q, want %q", verr.Field, tt.wantField)
			}
			if verr.Tool != "probe" {
				t.Errorf("ValidationError tool = %q, want probe", verr.Tool)
			}
		})
	}
}

func TestValidateArgs_NoDeclaredParameters(t *testing.T) {
	info := ToolInfo{Name: "loose"}
	if err := ValidateArgs(info, map[string]any{"anything": 1}); err != nil {
		t.Errorf("ValidateArgs() with no declared parameters returned error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	info := ToolInfo{
		Name: "probe",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "mode", Type: "string", Default: "fast"},
		},
	}

	args := map[string]any{"query": "harbor"}
	out := ApplyDefaults(info, args)

	if out["mode"] != "fast" {
		t.Errorf("ApplyDefaults() mode = %v, want fast", out["mode"])
	}
	if _, present := args["mode"]; present {
		t.Error("ApplyDefaults() mutated the input map")
	}

	out = ApplyDefaults(info, map[string]any{"query": "harbor", "mode": "deep"})
	if out["mode"] != "deep" {
		t.Errorf("ApplyDefaults() overrode explicit value: %v", out["mode"])
	}
}

type reflectTestArgs struct {
	Query string `json:"query" jsonschema:"required,description=What to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum hits"`
	Mode  string `json:"mode,omitempty" jsonschema:"enum=fast,enum=deep"`
}

func TestReflectParameters(t *testing.T) {
	params, err := ReflectParameters(reflectTestArgs{})
	if err != nil {
		t.Fatalf("ReflectParameters() returned error: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("ReflectParameters() returned %d parameters, want 3", len(params))
	}

	if params[0].Name != "query" || !params[0].Required || params[0].Type != "string" {
		t.Errorf("query parameter = %+v", params[0])
	}
	if params[0].Description != "What to search for" {
		t.Errorf("query description = %q", params[0].Description)
	}
	if params[1].Name != "limit" || params[1].Required || params[1].Type != "integer" {
		t.Errorf("limit parameter = %+v", params[1])
	}
	if params[2].Name != "mode" || len(params[2].Enum) != 2 || params[2].Enum[0] != "fast" {
		t.Errorf("mode parameter = %+v", params[2])
	}
}

func TestParametersSchema(t *testing.T) {
	params := []ToolParameter{
		{Name: "query", Type: "string", Description: "the query", Required: true},
		{Name: "mode", Type: "string", Enum: []string{"fast", "deep"}, Default: "fast"},
	}

	schema := ParametersSchema(params)
	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want object", schema["type"])
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema has no properties map")
	}
	query, ok := properties["query"].(map[string]any)
	if !ok || query["type"] != "string" || query["description"] != "the query" {
		t.Errorf("query property = %v", properties["query"])
	}

	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Errorf("schema required = %v, want [query]", schema["required"])
	}
}

func TestParametersFromSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":  map[string]any{"type": "string", "description": "file path"},
			"depth": map[string]any{"type": "integer", "default": float64(1)},
			"mode":  map[string]any{"type": "string", "enum": []any{"read", "stat"}},
		},
		"required": []any{"path"},
	}

	params := ParametersFromSchema(schema)
	if len(params) != 3 {
		t.Fatalf("ParametersFromSchema() returned %d parameters, want 3", len(params))
	}

	// Sorted by name: depth, mode, path.
	if params[0].Name != "depth" || params[0].Required {
		t.Errorf("depth parameter = %+v", params[0])
	}
	if params[1].Name != "mode" || len(params[1].Enum) != 2 {
		t.Errorf("mode parameter = %+v", params[1])
	}
	if params[2].Name != "path" || !params[2].Required || params[2].Description != "file path" {
		t.Errorf("path parameter = %+v", params[2])
	}
}

func TestParametersFromSchema_MissingProperties(t *testing.T) {
	if params := ParametersFromSchema(map[string]any{"type": "object"}); params != nil {
		t.Errorf("ParametersFromSchema() = %v, want nil", params)
	}
}
