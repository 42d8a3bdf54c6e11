package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jokas3322/coro-code/internal/mcp"
	"github.com/jokas3322/coro-code/internal/tool"
)

const mcpDefaultTimeoutSeconds = 30

// mcpServerEntry pairs a connected client with a mutex serializing all
// requests to that server, since a single stdio pipe cannot multiplex
// concurrent requests safely.
type mcpServerEntry struct {
	callMu sync.Mutex
	client *mcp.Client
}

// MCPTool is the mcp_tool bridge: a single tool exposing five operations
// over a pool of named external MCP servers, each reached over stdio
// JSON-RPC via the mcp package's Client.
type MCPTool struct {
	workspaceDir string

	mu      sync.Mutex
	servers map[string]*mcpServerEntry
}

func NewMCPTool(workspaceDir string) *MCPTool {
	return &MCPTool{workspaceDir: workspaceDir, servers: make(map[string]*mcpServerEntry)}
}

func (t *MCPTool) Name() string { return "mcp_tool" }
func (t *MCPTool) Description() string {
	return "Bridge to Model-Context-Protocol servers. Start/stop a named stdio " +
		"server, list running servers, list a server's tools, and call a tool " +
		"on it."
}

func (t *MCPTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "operation", Type: "string", Description: "one of start_server, stop_server, list_servers, list_tools, call_tool", Required: true,
			Enum: []string{"start_server", "stop_server", "list_servers", "list_tools", "call_tool"}},
		tool.SchemaParam{Name: "server_name", Type: "string", Description: "name identifying the server in the pool"},
		tool.SchemaParam{Name: "command", Type: "array", Description: "argv for start_server: executable followed by any leading arguments",
			Items: json.RawMessage(`{"type":"string"}`)},
		tool.SchemaParam{Name: "args", Type: "array", Description: "additional arguments appended after command",
			Items: json.RawMessage(`{"type":"string"}`)},
		tool.SchemaParam{Name: "env", Type: "object", Description: "extra environment variables for the spawned server"},
		tool.SchemaParam{Name: "timeout_seconds", Type: "integer", Description: "per-request timeout, default 30"},
		tool.SchemaParam{Name: "tool_name", Type: "string", Description: "tool to invoke for call_tool"},
		tool.SchemaParam{Name: "tool_arguments", Type: "object", Description: "arguments to pass to tool_name for call_tool"},
	)
}

func (t *MCPTool) RequiresConfirmation() bool { return true }
func (t *MCPTool) Init(_ context.Context) error { return nil }

func (t *MCPTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for name, entry := range t.servers {
		if err := entry.client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp_tool: close %q: %w", name, err)
		}
	}
	t.servers = make(map[string]*mcpServerEntry)
	return firstErr
}

type mcpArgs struct {
	Operation      string            `json:"operation"`
	ServerName     string            `json:"server_name"`
	Command        []string          `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	TimeoutSeconds *int              `json:"timeout_seconds"`
	ToolName       string            `json:"tool_name"`
	ToolArguments  json.RawMessage   `json:"tool_arguments"`
}

func (t *MCPTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a mcpArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}

	timeout := mcpDefaultTimeoutSeconds * time.Second
	if a.TimeoutSeconds != nil && *a.TimeoutSeconds > 0 {
		timeout = time.Duration(*a.TimeoutSeconds) * time.Second
	}

	switch a.Operation {
	case "start_server":
		return t.startServer(ctx, a, timeout)
	case "stop_server":
		return t.stopServer(a)
	case "list_servers":
		return t.listServers()
	case "list_tools":
		return t.listTools(ctx, a, timeout)
	case "call_tool":
		return t.callTool(ctx, a, timeout)
	default:
		return tool.Failed("", fmt.Sprintf("unknown operation %q", a.Operation)), nil
	}
}

func (t *MCPTool) startServer(ctx context.Context, a mcpArgs, timeout time.Duration) (tool.Result, error) {
	if a.ServerName == "" {
		return tool.Failed("", "server_name is required"), nil
	}
	if len(a.Command) == 0 {
		return tool.Failed("", "command is required and must name an executable"), nil
	}

	t.mu.Lock()
	if _, exists := t.servers[a.ServerName]; exists {
		t.mu.Unlock()
		return tool.Failed("", fmt.Sprintf("server %q is already running", a.ServerName)), nil
	}
	t.mu.Unlock()

	argv := append(append([]string{}, a.Command[1:]...), a.Args...)
	cfg := mcp.ServerConfig{
		Name:      a.ServerName,
		Transport: "stdio",
		Command:   a.Command[0],
		Args:      argv,
		Env:       envToSlice(a.Env),
	}

	client := mcp.NewClient(cfg)
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to start server %q: %v", a.ServerName, err)), nil
	}

	t.mu.Lock()
	if _, exists := t.servers[a.ServerName]; exists {
		t.mu.Unlock()
		_ = client.Close()
		return tool.Failed("", fmt.Sprintf("server %q is already running", a.ServerName)), nil
	}
	t.servers[a.ServerName] = &mcpServerEntry{client: client}
	t.mu.Unlock()

	return tool.OK("", fmt.Sprintf("server %q started", a.ServerName)), nil
}

func (t *MCPTool) stopServer(a mcpArgs) (tool.Result, error) {
	if a.ServerName == "" {
		return tool.Failed("", "server_name is required"), nil
	}

	t.mu.Lock()
	entry, ok := t.servers[a.ServerName]
	if ok {
		delete(t.servers, a.ServerName)
	}
	t.mu.Unlock()

	if !ok {
		return tool.Failed("", fmt.Sprintf("server %q is not running", a.ServerName)), nil
	}
	if err := entry.client.Close(); err != nil {
		return tool.Failed("", fmt.Sprintf("error stopping server %q: %v", a.ServerName, err)), nil
	}
	return tool.OK("", fmt.Sprintf("server %q stopped", a.ServerName)), nil
}

func (t *MCPTool) listServers() (tool.Result, error) {
	t.mu.Lock()
	names := make([]string, 0, len(t.servers))
	for name := range t.servers {
		names = append(names, name)
	}
	t.mu.Unlock()
	sort.Strings(names)

	result := tool.OK("", fmt.Sprintf("%d server(s) running: %s", len(names), strings.Join(names, ", ")))
	result.Data = map[string]any{"servers": names}
	return result, nil
}

func (t *MCPTool) lookup(name string) (*mcpServerEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.servers[name]
	return entry, ok
}

func (t *MCPTool) listTools(ctx context.Context, a mcpArgs, timeout time.Duration) (tool.Result, error) {
	if a.ServerName == "" {
		return tool.Failed("", "server_name is required"), nil
	}
	entry, ok := t.lookup(a.ServerName)
	if !ok {
		return tool.Failed("", fmt.Sprintf("server %q is not running", a.ServerName)), nil
	}

	entry.callMu.Lock()
	defer entry.callMu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tools, err := entry.client.ListTools(reqCtx)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to list tools on %q: %v", a.ServerName, err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tool(s) on %q:\n", len(tools), a.ServerName)
	names := make([]string, 0, len(tools))
	for _, ti := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", ti.Name, ti.Description)
		names = append(names, ti.Name)
	}

	result := tool.OK("", sb.String())
	result.Data = map[string]any{"tools": names}
	return result, nil
}

func (t *MCPTool) callTool(ctx context.Context, a mcpArgs, timeout time.Duration) (tool.Result, error) {
	if a.ServerName == "" {
		return tool.Failed("", "server_name is required"), nil
	}
	if a.ToolName == "" {
		return tool.Failed("", "tool_name is required"), nil
	}
	entry, ok := t.lookup(a.ServerName)
	if !ok {
		return tool.Failed("", fmt.Sprintf("server %q is not running", a.ServerName)), nil
	}

	var toolArgs map[string]any
	if len(a.ToolArguments) > 0 {
		if err := json.Unmarshal(a.ToolArguments, &toolArgs); err != nil {
			return tool.Failed("", fmt.Sprintf("tool_arguments is not a JSON object: %v", err)), nil
		}
	}

	entry.callMu.Lock()
	defer entry.callMu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	text, err := entry.client.CallTool(reqCtx, a.ToolName, toolArgs)
	if err != nil {
		return tool.Failed("", err.Error()), nil
	}
	return tool.OK("", text), nil
}

// envToSlice converts a map of environment variables to "KEY=VALUE" form,
// as the stdio transport expects.
func envToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}
