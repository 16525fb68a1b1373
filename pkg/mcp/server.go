package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cascadehq/cascade/internal/store"
	"github.com/cascadehq/cascade/pkg/engine"
)

// CascadeServerDeps holds the dependencies for creating a CascadeServer.
// Store and History may be nil, which disables the history tool and
// result persistence.
type CascadeServerDeps struct {
	Registry *engine.Registry
	Store    store.Store
	History  *store.HistorySink
	Logger   *slog.Logger
}

// CascadeServer wraps an MCP server with cascade-specific tool handlers.
type CascadeServer struct {
	registry  *engine.Registry
	store     store.Store
	history   *store.HistorySink
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  RunNotifier
	mcpServer *server.MCPServer
}

// NewCascadeServer creates a new CascadeServer with all 4 tools registered.
func NewCascadeServer(deps CascadeServerDeps) *CascadeServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &CascadeServer{
		registry: deps.Registry,
		store:    deps.Store,
		history:  deps.History,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"cascade",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Cascade is a declarative event-driven flow orchestration engine. Use cascade.flows to list registered flows and inspect their structure, cascade.run to kick off a flow, cascade.plot to visualize a flow graph, and cascade.history to query past runs and their event streams."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *CascadeServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *CascadeServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *CascadeServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: flowsTool(), Handler: s.handleFlows},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: plotTool(), Handler: s.handlePlot},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func flowsTool() mcp.Tool {
	return mcp.NewTool("cascade.flows",
		mcp.WithDescription("List registered flows, or inspect one flow's methods, conditions and graph structure"),
		mcp.WithString("name", mcp.Description("Flow name to inspect (omit to list all flows)")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("cascade.run",
		mcp.WithDescription("Kick off a registered flow with the given inputs"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the flow to run")),
		mcp.WithObject("inputs", mcp.Description("Input parameters, validated against the flow's input schema")),
		mcp.WithBoolean("wait", mcp.Description("Wait for the run to finish (default true). When false, the run proceeds in the background and a completion notification is pushed to this session")),
	)
}

func plotTool() mcp.Tool {
	return mcp.NewTool("cascade.plot",
		mcp.WithDescription("Render a flow graph as ASCII art, Mermaid flowchart syntax, or Graphviz DOT"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Flow name to plot")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "dot"),
			mcp.Description("Output format"),
		),
		mcp.WithString("run_id", mcp.Description("Overlay per-method statuses from a past run (requires history)")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("cascade.history",
		mcp.WithDescription("Query past runs, their event streams, or a replayed per-method view of one run"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("runs", "events", "replay"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (flow, status, limit, run_id, event_type, since)")),
	)
}
