package tools

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/veraxis/scout/pkg/registry"
)

// ToolEntry binds a registered tool to the source that provided it.
type ToolEntry struct {
	Tool       Tool
	Source     ToolSource
	SourceType string
	Name       string
}

// ToolRegistry holds every tool available to the agent. During startup the
// runtime registers sources, then freezes the registry; registration after
// Freeze is an error. Reads are safe for concurrent use.
type ToolRegistry struct {
	*registry.BaseRegistry[ToolEntry]
	frozen atomic.Bool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[ToolEntry](),
	}
}

// Register adds a single tool entry. Fails once the registry is frozen.
func (r *ToolRegistry) Register(name string, entry ToolEntry) error {
	if r.frozen.Load() {
		return fmt.Errorf("tool registry is frozen, cannot register %q", name)
	}
	return r.BaseRegistry.Register(name, entry)
}

// RegisterSource discovers the source's tools and registers each of them.
func (r *ToolRegistry) RegisterSource(ctx context.Context, source ToolSource) error {
	name := source.GetName()
	if name == "" {
		return fmt.Errorf("tool source name cannot be empty")
	}
	if r.frozen.Load() {
		return fmt.Errorf("tool registry is frozen, cannot register source %q", name)
	}

	if err := source.DiscoverTools(ctx); err != nil {
		return fmt.Errorf("discovering tools from source %q: %w", name, err)
	}

	for _, info := range source.ListTools() {
		tool, exists := source.GetTool(info.Name)
		if !exists {
			continue
		}
		entry := ToolEntry{
			Tool:       tool,
			Source:     source,
			SourceType: source.GetType(),
			Name:       info.Name,
		}
		if err := r.Register(info.Name, entry); err != nil {
			return fmt.Errorf("registering tool %q from source %q: %w", info.Name, name, err)
		}
	}

	return nil
}

// Freeze makes the registry immutable for the rest of the process lifetime.
func (r *ToolRegistry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether the registry has been frozen.
func (r *ToolRegistry) Frozen() bool {
	return r.frozen.Load()
}

// GetTool returns the tool registered under name.
func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	return entry.Tool, nil
}

// ListTools returns every registered tool's info, sorted by name, with the
// Source field filled from the providing source.
func (r *ToolRegistry) ListTools() []ToolInfo {
	var tools []ToolInfo
	for _, entry := range r.List() {
		info := entry.Tool.GetInfo()
		info.Source = entry.Source.GetName()
		tools = append(tools, info)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools
}

// ListToolsBySource groups tool infos by the name of their source.
func (r *ToolRegistry) ListToolsBySource() map[string][]ToolInfo {
	result := make(map[string][]ToolInfo)
	for _, entry := range r.List() {
		sourceName := entry.Source.GetName()
		info := entry.Tool.GetInfo()
		info.Source = sourceName
		result[sourceName] = append(result[sourceName], info)
	}
	for _, infos := range result {
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].Name < infos[j].Name
		})
	}
	return result
}

// GetToolSource returns the name of the source that provided the tool.
func (r *ToolRegistry) GetToolSource(name string) (string, error) {
	entry, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("tool %q not found", name)
	}
	return entry.Source.GetName(), nil
}
