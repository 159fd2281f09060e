package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(backend Backend, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("liftlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("liftlog workout session server. Start a session from a plan, log sets, skip or resume exercises and finish the session. All data is scoped to the authenticated user; only one session can be active at a time."),
	)

	h := &handlers{backend: backend, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolStartSession, Handler: h.startSession},
		server.ServerTool{Tool: toolCompleteSet, Handler: h.completeSet},
		server.ServerTool{Tool: toolAddSet, Handler: h.addSet},
		server.ServerTool{Tool: toolSkipExercise, Handler: h.skipExercise},
		server.ServerTool{Tool: toolResumeExercise, Handler: h.resumeExercise},
		server.ServerTool{Tool: toolFinishSession, Handler: h.finishSession},
		server.ServerTool{Tool: toolGetActiveSession, Handler: h.getActiveSession},
		server.ServerTool{Tool: toolListSessions, Handler: h.listSessions},
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolDeleteSession, Handler: h.deleteSession},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
	)

	s.AddResources(
		server.ServerResource{Resource: resActiveSession, Handler: h.activeSession},
		server.ServerResource{Resource: resSessionHistory, Handler: h.sessionHistory},
		server.ServerResource{Resource: resCatalog, Handler: h.catalog},
	)

	return s
}

// NewHTTPHandler serves s over streamable HTTP. The owner id placed on the
// request context by the HTTP layer is carried into tool calls.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := UserIDFromContext(r.Context()); ok {
				return WithUserID(ctx, id)
			}
			return ctx
		}),
	)
}

// ServeStdio serves s on stdin/stdout with every call attributed to ownerID.
func ServeStdio(s *server.MCPServer, ownerID int) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return WithUserID(ctx, ownerID)
	}))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	backend Backend
	log     *slog.Logger
}

// --- Resource definitions ---

var resActiveSession = mcp.NewResource(
	"liftlog://active_session",
	"Active Session",
	mcp.WithResourceDescription("The caller's session in progress with its exercises and sets, or null"),
	mcp.WithMIMEType("application/json"),
)

var resSessionHistory = mcp.NewResource(
	"liftlog://sessions",
	"Session History",
	mcp.WithResourceDescription("All of the caller's sessions, newest first"),
	mcp.WithMIMEType("application/json"),
)

var resCatalog = mcp.NewResource(
	"liftlog://catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Every catalog exercise with name and muscle group, ordered by name"),
	mcp.WithMIMEType("application/json"),
)
