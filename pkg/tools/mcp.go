package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
)

const mcpProtocolVersion = "2024-11-05"

// MCPToolSource connects to a Model Context Protocol server and exposes its
// tools through the Tool interface. Stdio transport spawns the server as a
// subprocess; http uses the streamable HTTP transport.
type MCPToolSource struct {
	cfg config.MCPServerConfig

	mu     sync.RWMutex
	client *client.Client
	tools  map[string]Tool
}

func NewMCPToolSource(cfg config.MCPServerConfig) (*MCPToolSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp source name cannot be empty")
	}
	switch cfg.Transport {
	case "", "stdio":
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp source %q: stdio transport requires a command", cfg.Name)
		}
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp source %q: http transport requires a url", cfg.Name)
		}
	default:
		return nil, fmt.Errorf("mcp source %q: unsupported transport %q", cfg.Name, cfg.Transport)
	}

	return &MCPToolSource{
		cfg:   cfg,
		tools: make(map[string]Tool),
	}, nil
}

func (s *MCPToolSource) GetName() string { return s.cfg.Name }

func (s *MCPToolSource) GetType() string { return "mcp" }

// DiscoverTools connects to the server, initializes the MCP session, and
// wraps every listed remote tool.
func (s *MCPToolSource) DiscoverTools(ctx context.Context) error {
	mcpClient, err := s.connect(ctx)
	if err != nil {
		return err
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("listing tools from MCP server %q: %w", s.cfg.Name, err)
	}

	tools := make(map[string]Tool, len(listResp.Tools))
	for _, remote := range listResp.Tools {
		tools[remote.Name] = &mcpTool{
			source:      s,
			name:        remote.Name,
			description: remote.Description,
			parameters:  ParametersFromSchema(convertInputSchema(remote.InputSchema)),
		}
	}

	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
	}
	s.client = mcpClient
	s.tools = tools
	s.mu.Unlock()

	slog.Info("Connected to MCP server",
		"name", s.cfg.Name,
		"transport", s.transportName(),
		"tools", len(tools))

	return nil
}

func (s *MCPToolSource) connect(ctx context.Context) (*client.Client, error) {
	var mcpClient *client.Client
	var err error
	if s.cfg.Transport == "http" {
		mcpClient, err = client.NewStreamableHttpClient(s.cfg.URL)
	} else {
		mcpClient, err = client.NewStdioMCPClient(s.cfg.Command, nil, s.cfg.Args...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating MCP client for %q: %w", s.cfg.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP client for %q: %w", s.cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "scout",
		Version: "0.1.0",
	}
	initReq.Params.ProtocolVersion = mcpProtocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("initializing MCP session with %q: %w", s.cfg.Name, err)
	}

	return mcpClient, nil
}

func (s *MCPToolSource) transportName() string {
	if s.cfg.Transport == "" {
		return "stdio"
	}
	return s.cfg.Transport
}

func (s *MCPToolSource) ListTools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		infos = append(infos, tool.GetInfo())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func (s *MCPToolSource) GetTool(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tool, exists := s.tools[name]
	return tool, exists
}

// Close shuts down the connection and, for stdio transport, the server
// subprocess.
func (s *MCPToolSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *MCPToolSource) currentClient() *client.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// mcpTool proxies Execute calls to the remote server.
type mcpTool struct {
	source      *MCPToolSource
	name        string
	description string
	parameters  []ToolParameter
}

func (t *mcpTool) GetName() string { return t.name }

func (t *mcpTool) GetDescription() string { return t.description }

func (t *mcpTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
		Source:      t.source.GetName(),
	}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	mcpClient := t.source.currentClient()
	if mcpClient == nil {
		return ToolResult{}, fault.NewTransientError(t.name, 1,
			fmt.Errorf("MCP source %q is not connected", t.source.GetName()))
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return ToolResult{}, fault.NewTransientError(t.name, 1, err)
	}

	texts := collectTextContent(resp.Content)
	if resp.IsError {
		message := "remote tool reported an error"
		if len(texts) > 0 {
			message = strings.Join(texts, "\n")
		}
		return errorResult(t.name, message), nil
	}

	return successResult(t.name, strings.Join(texts, "\n")), nil
}

func collectTextContent(content []mcp.Content) []string {
	var texts []string
	for _, c := range content {
		if text, ok := c.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	return texts
}

// convertInputSchema flattens the MCP schema struct into a plain map so it
// can share the ParametersFromSchema path.
func convertInputSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
