package capability

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"testctl/internal/config"
	"testctl/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient is the part of the mcp-go client the tool caller needs.
type MCPClient interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// ToolResult is the flattened content of a tool call.
type ToolResult struct {
	Text      string
	Texts     []string
	Image     []byte
	ImageMIME string
}

// ToolCaller invokes tools on a connected MCP server.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, arguments map[string]interface{}) (*ToolResult, error)
	Close() error
}

// MCPToolCaller implements ToolCaller over an mcp-go client.
type MCPToolCaller struct {
	client MCPClient
	name   string
}

// NewMCPToolCaller wraps an initialized client. The name is used in logs.
func NewMCPToolCaller(c MCPClient, name string) *MCPToolCaller {
	return &MCPToolCaller{client: c, name: name}
}

// CallTool calls toolName and converts its content. A result flagged as an
// error is returned as a Go error carrying the tool's text.
func (tc *MCPToolCaller) CallTool(ctx context.Context, toolName string, arguments map[string]interface{}) (*ToolResult, error) {
	if tc.client == nil {
		return nil, fmt.Errorf("mcp client is nil")
	}

	logging.Debug("ToolCaller", "[%s] Calling tool %s with args: %v", tc.name, toolName, arguments)

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = arguments

	result, err := tc.client.CallTool(ctx, req)
	if err != nil {
		return nil, &callError{tool: toolName, err: err}
	}
	if result == nil {
		return nil, fmt.Errorf("tool %s returned nil result", toolName)
	}

	out := &ToolResult{}
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			out.Texts = append(out.Texts, text.Text)
		} else if img, ok := mcp.AsImageContent(content); ok {
			if out.Image != nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				return nil, fmt.Errorf("tool %s returned invalid image data: %w", toolName, err)
			}
			out.Image = data
			out.ImageMIME = img.MIMEType
		}
	}
	out.Text = strings.Join(out.Texts, "\n")

	if result.IsError {
		msg := out.Text
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, fmt.Errorf("tool %s failed: %s", toolName, msg)
	}
	return out, nil
}

// Close closes the underlying client.
func (tc *MCPToolCaller) Close() error {
	if tc.client == nil {
		return nil
	}
	return tc.client.Close()
}

type callError struct {
	tool string
	err  error
}

func (e *callError) Error() string { return fmt.Sprintf("failed to call tool %s: %v", e.tool, e.err) }
func (e *callError) Unwrap() error { return e.err }

const initTimeout = 30 * time.Second

// Connect starts an MCP client for the endpoint (stdio when a command is
// set, streamable HTTP otherwise) and performs the initialize handshake.
func Connect(ctx context.Context, endpoint config.MCPEndpoint, clientName string) (*MCPToolCaller, error) {
	var c *client.Client
	switch {
	case endpoint.Command != "":
		stdio, err := client.NewStdioMCPClient(endpoint.Command, nil, endpoint.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", endpoint.Command, err)
		}
		c = stdio
	case endpoint.URL != "":
		httpClient, err := client.NewStreamableHttpClient(endpoint.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable HTTP client: %w", err)
		}
		if err := httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start streamable HTTP client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("no mcp_command or mcp_url configured for %s", clientName)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = "2024-11-05"
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "1.0.0"}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if _, err := c.Initialize(initCtx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	logging.Debug("ToolCaller", "Connected %s", clientName)
	return NewMCPToolCaller(c, clientName), nil
}
