package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/scangate/internal/engine"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

// toolInputSchema is the JSON schema shared by every registered tool: the
// execute body shape, target/extra_args/timeout_sec/correlation_id.
var toolInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target": {"type": "string", "description": "host, IP, CIDR, or URL the tool runs against"},
		"extra_args": {"type": "string", "description": "additional flags, filtered against this tool's grammar"},
		"timeout_sec": {"type": "number", "description": "overrides the tool's default timeout, 1-3600 seconds"},
		"correlation_id": {"type": "string", "description": "caller-supplied id echoed back on the result"}
	},
	"required": ["target"]
}`)

// MCPServer wraps the execution engine as an mcp-go tool server, registering
// one MCP tool per enabled ToolDescriptor and serving it over stdio.
type MCPServer struct {
	engine         *engine.Engine
	tools          *toolreg.Registry
	allowIntrusive bool
	mcpServer      *mcpserver.MCPServer
}

// NewMCPServer builds an MCPServer and registers every tool currently known
// to the registry. Tools disabled after construction are rejected inside
// the handler rather than unregistered, since mcp-go has no tool removal
// call and the set of known tools is fixed at process start.
func NewMCPServer(name, version string, eng *engine.Engine, tools *toolreg.Registry, allowIntrusive bool) *MCPServer {
	inner := mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	s := &MCPServer{
		engine:         eng,
		tools:          tools,
		allowIntrusive: allowIntrusive,
		mcpServer:      inner,
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	for _, d := range s.tools.List() {
		tool := mcp.NewToolWithRawSchema(d.Name, toolDescription(d), toolInputSchema)
		s.mcpServer.AddTool(tool, s.wrapTool(d.Name))
	}
}

func toolDescription(d toolreg.Descriptor) string {
	return fmt.Sprintf("Run %s against target, subject to its argument grammar and circuit breaker. Default timeout %.0fs, concurrency cap %d.",
		d.Command, d.DefaultTimeoutSec, d.ConcurrencyCap)
}

// wrapTool converts one tool's engine.Execute call into an mcp-go
// ToolHandlerFunc, mirroring the HTTP transport's validation and the stdio
// transport's disabled/unknown handling.
func (s *MCPServer) wrapTool(toolName string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.tools.Enabled(toolName) {
			return errorResult(fmt.Sprintf("tool %s is disabled", toolName)), nil
		}

		args := request.GetArguments()
		body := ExecuteBody{
			Target:     stringArg(args, "target"),
			ExtraArgs:  stringArg(args, "extra_args"),
			TimeoutSec: numberArg(args, "timeout_sec"),
		}
		if cid := stringArg(args, "correlation_id"); cid != "" {
			body.CorrelationID = cid
		}
		if err := body.Validate(); err != nil {
			return errorResult(err.Error()), nil
		}

		slog.Debug("dispatcher.mcp_request", "tool", toolName, "correlation_id", body.CorrelationID)
		result := s.engine.Execute(ctx, toRequest(toolName, body, s.allowIntrusive))

		payload, err := json.Marshal(result)
		if err != nil {
			return errorResult(fmt.Sprintf("result encode failed: %v", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: result.ErrorKind != "",
		}, nil
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(message)},
		IsError: true,
	}
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key].(string)
	if !ok {
		return ""
	}
	return v
}

func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Serve runs the MCP server over stdio until ctx is canceled or the stream
// closes.
func (s *MCPServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, r, w)
}
