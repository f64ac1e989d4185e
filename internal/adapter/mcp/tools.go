package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/replatform-mcp/internal/adapter/n8n"
	"github.com/Strob0t/replatform-mcp/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.queryTool(service.ToolRAG, "RAG",
			"Query the RAG system for code replatforming and modernization insights",
			"Question about code replatforming, migration, or modernization"),
		s.queryTool(service.ToolGraph, "graph",
			"Query the graph system for code structure analysis and relationships",
			"Question about code structure, dependencies, or relationships"),
		s.dashboardTool(),
	)
}

func (s *Server) queryTool(name, label, description, queryDescription string) mcpserver.ServerTool {
	tool := mcplib.NewTool(name,
		mcplib.WithDescription(description),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description(queryDescription),
		),
		mcplib.WithString("agentId",
			mcplib.Description("Optional agent ID for tracking"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleQuery(name, label),
	}
}

func (s *Server) dashboardTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(service.ToolDashboard,
		mcplib.WithDescription("Get current agent metrics and sessions for the monitoring dashboard"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleDashboard,
	}
}

func (s *Server) handleQuery(tool, label string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		if s.deps.Queries == nil {
			return mcplib.NewToolResultError("query service not configured"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		if err := n8n.ValidateQuery(query, s.deps.MaxQueryLength); err != nil {
			return mcplib.NewToolResultError(queryFailure(label, err)), nil
		}

		resp, err := s.deps.Queries.Run(ctx, tool, req.GetString("agentId", ""), query)
		if err != nil {
			return mcplib.NewToolResultText(queryFailure(label, err)), nil
		}
		return mcplib.NewToolResultText(resp), nil
	}
}

func queryFailure(label string, err error) string {
	return fmt.Sprintf("Error querying %s system: %s", label, n8n.Describe(err))
}

func (s *Server) handleDashboard(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Queries == nil {
		return mcplib.NewToolResultError("query service not configured"), nil
	}
	data, err := json.MarshalIndent(s.deps.Queries.Dashboard(), "", "  ")
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("Error retrieving dashboard data", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
