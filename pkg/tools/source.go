package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/veraxis/scout/pkg/config"
)

// LocalSource holds in-process tools.
type LocalSource struct {
	name  string
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewLocalSource(name string) *LocalSource {
	if name == "" {
		name = "local"
	}
	return &LocalSource{
		name:  name,
		tools: make(map[string]Tool),
	}
}

// NewLocalSourceFromConfig builds the local source holding the enabled
// builtin tools. An empty enabled list activates every builtin.
func NewLocalSourceFromConfig(cfg config.ToolsConfig) (*LocalSource, error) {
	cfg.SetDefaults()
	source := NewLocalSource("local")

	available := map[string]func() (Tool, error){
		"calculator":      func() (Tool, error) { return NewCalculatorTool(), nil },
		"current_time":    func() (Tool, error) { return NewCurrentTimeTool(), nil },
		"string_reverse":  func() (Tool, error) { return NewStringReverseTool(), nil },
		"word_count":      func() (Tool, error) { return NewWordCountTool(), nil },
		"web_search":      func() (Tool, error) { return NewWebSearchTool(cfg.WebSearch), nil },
		"fetch_url":       func() (Tool, error) { return NewFetchURLTool(), nil },
		"execute_command": func() (Tool, error) { return NewCommandTool(cfg.Sandbox) },
	}

	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = make([]string, 0, len(available))
		for name := range available {
			enabled = append(enabled, name)
		}
		sort.Strings(enabled)
	}

	for _, name := range enabled {
		build, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown builtin tool %q", name)
		}
		tool, err := build()
		if err != nil {
			return nil, fmt.Errorf("creating tool %q: %w", name, err)
		}
		if err := source.RegisterTool(tool); err != nil {
			return nil, err
		}
	}

	return source, nil
}

// NewSourcesFromConfig builds every configured tool source: the local
// builtin source plus one MCP source per configured server. The runtime
// registers these into the registry and then freezes it.
func NewSourcesFromConfig(cfg config.ToolsConfig) ([]ToolSource, error) {
	local, err := NewLocalSourceFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	sources := []ToolSource{local}
	for _, serverCfg := range cfg.MCP {
		mcpSource, err := NewMCPToolSource(serverCfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, mcpSource)
	}

	return sources, nil
}

func (s *LocalSource) GetName() string { return s.name }

func (s *LocalSource) GetType() string { return "local" }

func (s *LocalSource) RegisterTool(tool Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := tool.GetName()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := s.tools[name]; exists {
		return fmt.Errorf("tool %q already registered in source %q", name, s.name)
	}

	s.tools[name] = tool
	return nil
}

// DiscoverTools is a no-op: local tools are registered at construction.
func (s *LocalSource) DiscoverTools(ctx context.Context) error {
	return nil
}

func (s *LocalSource) ListTools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		info := tool.GetInfo()
		info.Source = s.name
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func (s *LocalSource) GetTool(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tool, exists := s.tools[name]
	return tool, exists
}

var (
	_ ToolSource = (*LocalSource)(nil)
	_ ToolSource = (*MCPToolSource)(nil)

	_ Tool = (*CalculatorTool)(nil)
	_ Tool = (*CurrentTimeTool)(nil)
	_ Tool = (*StringReverseTool)(nil)
	_ Tool = (*WordCountTool)(nil)
	_ Tool = (*WebSearchTool)(nil)
	_ Tool = (*FetchURLTool)(nil)
	_ Tool = (*CommandTool)(nil)
	_ Tool = (*mcpTool)(nil)
)
