package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/steps"
	"github.com/rendis/cog-hubspot/internal/store"
)

// ClientFactory builds a ready CRM client from per-call credentials.
type ClientFactory func(ctx context.Context, auth crm.Auth) (crm.Client, error)

// CogServerDeps holds the dependencies for creating a CogServer.
type CogServerDeps struct {
	Runner   *steps.Runner
	Registry *steps.Registry
	Store    store.Store
	// Client is the long-lived client built from configured credentials. May be nil.
	Client    crm.Client
	NewClient ClientFactory
	Version   string
	Logger    *slog.Logger
}

// CogServer wraps an MCP server with the cog's tool handlers.
type CogServer struct {
	runner    *steps.Runner
	registry  *steps.Registry
	store     store.Store
	client    crm.Client
	newClient ClientFactory
	version   string
	sessions  *SessionClients
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewCogServer creates a new CogServer with all 3 tools registered.
func NewCogServer(deps CogServerDeps) *CogServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	newClient := deps.NewClient
	if newClient == nil {
		newClient = func(ctx context.Context, auth crm.Auth) (crm.Client, error) {
			return crm.New(ctx, auth, crm.WithLogger(logger))
		}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &CogServer{
		runner:    deps.Runner,
		registry:  deps.Registry,
		store:     deps.Store,
		client:    deps.Client,
		newClient: newClient,
		version:   version,
		sessions:  NewSessionClients(),
		logger:    logger,
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.sessions.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		steps.CogName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("HubSpot cog. Use cog.manifest to list the available steps and their expected fields, cog.run_step to run a step against HubSpot, and cog.runs to inspect past step runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *CogServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeSSE starts the SSE transport on addr and blocks until ctx is cancelled.
func (s *CogServer) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()
	s.logger.Info("sse transport listening", slog.String("addr", addr), slog.String("base_url", baseURL))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := sse.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return http.ErrServerClosed
	}
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *CogServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 3 registered MCP tools as ServerTool entries.
func (s *CogServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: manifestTool(), Handler: s.handleManifest},
		{Tool: runStepTool(), Handler: s.handleRunStep},
		{Tool: runsTool(), Handler: s.handleRuns},
	}
}

// --- Tool definitions ---

func manifestTool() mcp.Tool {
	return mcp.NewTool("cog.manifest",
		mcp.WithDescription("Describe the cog: metadata, auth fields, and step definitions"),
	)
}

func runStepTool() mcp.Tool {
	return mcp.NewTool("cog.run_step",
		mcp.WithDescription("Run a step against HubSpot"),
		mcp.WithString("step_id", mcp.Required(), mcp.Description("ID of the step to run")),
		mcp.WithObject("data", mcp.Description("Step input keyed by the step's expected field keys")),
		mcp.WithObject("auth", mcp.Description("Credentials for this session (apiKey, or clientId, clientSecret, refreshToken, redirectUri)")),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("cog.runs",
		mcp.WithDescription("Query recorded step runs"),
		mcp.WithString("run_id", mcp.Description("Return a single run by ID")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (step_id, outcome, since, limit, offset)")),
	)
}
