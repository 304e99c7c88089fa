// Package tools provides the tool execution framework: the Tool contract,
// schema validation for arguments, a freezable registry composed from
// sources, and an executor that applies timeout and retry policy to every
// invocation.
package tools

import (
	"context"
	"time"
)

// Tool is the contract every executable capability implements. Handlers
// receive already-validated arguments and must honor context cancellation.
type Tool interface {
	GetInfo() ToolInfo
	GetName() string
	GetDescription() string
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolParameter declares one argument of a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolInfo describes a tool to the reasoning backend.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// ToolResult is the outcome of a single handler run. Success false with an
// Error message is a soft failure: the tool ran and reported a problem the
// reasoning engine can observe and react to.
type ToolResult struct {
	Success       bool           `json:"success"`
	Content       string         `json:"content,omitempty"`
	Error         string         `json:"error,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ToolSource supplies tools to the registry. Builtins come from a local
// source; remote tools arrive through MCP sources.
type ToolSource interface {
	GetName() string
	GetType() string
	DiscoverTools(ctx context.Context) error
	ListTools() []ToolInfo
	GetTool(name string) (Tool, bool)
}

func errorResult(toolName, message string) ToolResult {
	return ToolResult{
		Success:  false,
		Error:    message,
		ToolName: toolName,
	}
}

func successResult(toolName, content string) ToolResult {
	return ToolResult{
		Success:  true,
		Content:  content,
		ToolName: toolName,
	}
}
