// Package mcpserver exposes the orchestrator as MCP tools so that agents can
// run cases, manage locators and version test sets.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"testctl/internal/locator"
	"testctl/internal/router"
	"testctl/internal/step"
	"testctl/internal/testcase"
	"testctl/internal/versioning"
	"testctl/pkg/logging"
)

// Runner runs and classifies cases. *router.Router implements it.
type Runner interface {
	RunAll(ctx context.Context, cases []testcase.TestCase, workers int) router.Batch
	Classify(ctx context.Context, tc testcase.TestCase) step.Kind
}

// Server holds the tool handlers and the MCP server they are registered on.
type Server struct {
	runner   Runner
	locators *locator.Store
	versions *versioning.Manager
	mcp      *server.MCPServer
}

// New creates a server and registers every tool.
func New(runner Runner, locators *locator.Store, versions *versioning.Manager, version string) *Server {
	s := &Server{
		runner:   runner,
		locators: locators,
		versions: versions,
		mcp: server.NewMCPServer(
			"testctl",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.mcp.AddTools(s.Tools()...)
	return s
}

// MCPServer returns the underlying server, e.g. for an HTTP transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the tools on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	logging.Info("MCPServer", "Serving %d tools on stdio", len(s.Tools()))
	return server.ServeStdio(s.mcp)
}

// Tools returns the tool definitions paired with their handlers.
func (s *Server) Tools() []server.ServerTool {
	locatorArgs := func(opts ...mcp.ToolOption) []mcp.ToolOption {
		return append([]mcp.ToolOption{
			mcp.WithString("context",
				mcp.Required(),
				mcp.Description("Locator context"),
				mcp.Enum(locator.ContextUI, locator.ContextMobile),
			),
			mcp.WithString("step_key",
				mcp.Required(),
				mcp.Description("Step key, as returned by testctl_step_key"),
			),
		}, opts...)
	}

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("testctl_run_cases",
				mcp.WithDescription("Run a batch of test cases and return one summary per case"),
				mcp.WithString("cases",
					mcp.Required(),
					mcp.Description("JSON array of test cases"),
				),
				mcp.WithNumber("parallel",
					mcp.Description("Number of workers; 0 uses the configured pool size"),
				),
			),
			Handler: s.handleRunCases,
		},
		{
			Tool: mcp.NewTool("testctl_classify_case",
				mcp.WithDescription("Return the backend a test case would run on"),
				mcp.WithString("case",
					mcp.Required(),
					mcp.Description("JSON test case"),
				),
			),
			Handler: s.handleClassifyCase,
		},
		{
			Tool:    mcp.NewTool("testctl_get_locator", locatorArgs(mcp.WithDescription("Return the active locator for a step key"))...),
			Handler: s.handleGetLocator,
		},
		{
			Tool: mcp.NewTool("testctl_set_locator", locatorArgs(
				mcp.WithDescription("Store a new active locator version for a step key"),
				mcp.WithString("type", mcp.Required(), mcp.Description("Locator type, e.g. css, xpath or accessibility_id")),
				mcp.WithString("value", mcp.Required(), mcp.Description("Locator value")),
			)...),
			Handler: s.handleSetLocator,
		},
		{
			Tool:    mcp.NewTool("testctl_locator_history", locatorArgs(mcp.WithDescription("Return every locator version for a step key, newest first"))...),
			Handler: s.handleLocatorHistory,
		},
		{
			Tool: mcp.NewTool("testctl_add_version",
				mcp.WithDescription("Store a new version of a user story's test set"),
				mcp.WithString("user_story", mcp.Required(), mcp.Description("User story the cases belong to")),
				mcp.WithString("author", mcp.Description("Author of the version")),
				mcp.WithString("cases", mcp.Required(), mcp.Description("JSON array of test cases")),
			),
			Handler: s.handleAddVersion,
		},
		{
			Tool: mcp.NewTool("testctl_list_versions",
				mcp.WithDescription("List the versions of a user story's test set, oldest first"),
				mcp.WithString("user_story", mcp.Required(), mcp.Description("User story")),
			),
			Handler: s.handleListVersions,
		},
		{
			Tool: mcp.NewTool("testctl_compare_versions",
				mcp.WithDescription("Compare two stored versions by ID"),
				mcp.WithNumber("a", mcp.Required(), mcp.Description("ID of the older version")),
				mcp.WithNumber("b", mcp.Required(), mcp.Description("ID of the newer version")),
			),
			Handler: s.handleCompareVersions,
		},
		{
			Tool: mcp.NewTool("testctl_step_key",
				mcp.WithDescription("Compute the locator key of a step"),
				mcp.WithString("step", mcp.Required(), mcp.Description("JSON step object")),
			),
			Handler: s.handleStepKey,
		},
	}
}
