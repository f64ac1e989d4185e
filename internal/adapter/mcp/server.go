// Package mcp exposes the query and dashboard tools over the Model Context
// Protocol using mark3labs/mcp-go.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/replatform-mcp/internal/service"
)

// QueryRunner runs tracked queries and reports the dashboard snapshot.
type QueryRunner interface {
	Run(ctx context.Context, tool, agentID, query string) (string, error)
	Dashboard() service.Dashboard
}

// ServerConfig holds the identity the server announces to clients.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string // guards the HTTP transport; empty disables the check
}

// ServerDeps holds the services behind the tools.
type ServerDeps struct {
	Queries        QueryRunner
	MaxQueryLength int
}

// Server wraps an MCP server with the replatforming tools registered.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates the MCP server and registers its tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio speaks the protocol over in and out until ctx ends or in is
// closed. Nothing else may write to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))
	slog.Info("mcp server listening on stdio", "name", s.cfg.Name, "version", s.cfg.Version)
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler returns the streamable HTTP transport, guarded by the API key
// when one is configured.
func (s *Server) HTTPHandler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}
