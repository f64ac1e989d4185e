package mcp

import (
	"context"
	"encoding/json"
	"errors"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agents://sessions",
			"Agent Sessions",
			mcplib.WithResourceDescription("Tracked agent sessions with their event logs"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleSessionsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agents://metrics",
			"Agent Metrics",
			mcplib.WithResourceDescription("Aggregate request, tool usage and response time metrics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleMetricsResource,
	)
}

var errNoQueries = errors.New("query service not configured")

func (s *Server) handleSessionsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Queries == nil {
		return nil, errNoQueries
	}
	return jsonResource(req.Params.URI, s.deps.Queries.Dashboard().Sessions)
}

func (s *Server) handleMetricsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Queries == nil {
		return nil, errNoQueries
	}
	return jsonResource(req.Params.URI, s.deps.Queries.Dashboard().Metrics)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
