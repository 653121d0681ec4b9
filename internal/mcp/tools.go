package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keygate/keygate/internal/auditlog"
)

// registerTools registers all keygate MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("keygate_query_logs",
			mcp.WithDescription(
				"Query the invite access audit log. Returns entries newest first, "+
					"each with user, tool, action (access/denied/expired/invalid_key), "+
					"IP, user agent, and optional geolocation.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("start",
				mcp.Description("Range start, RFC 3339 or YYYY-MM-DD"),
			),
			mcp.WithString("end",
				mcp.Description("Range end, RFC 3339 or YYYY-MM-DD"),
			),
			mcp.WithString("tool",
				mcp.Description("Restrict to one tool ID"),
			),
			mcp.WithString("user",
				mcp.Description("Restrict to one user name"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries to return (default 50, max 1000)"),
			),
		),
		s.handleQueryLogs,
	)

	srv.AddTool(
		mcp.NewTool("keygate_log_stats",
			mcp.WithDescription(
				"Aggregate audit-log statistics over a trailing window: total "+
					"successful accesses, unique users, top tools and users, the most "+
					"recent entries, and a per-day histogram.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("days",
				mcp.Description("Trailing window in days (default 7)"),
			),
		),
		s.handleLogStats,
	)

	srv.AddTool(
		mcp.NewTool("keygate_export_logs",
			mcp.WithDescription(
				"Export audit entries in a date range as CSV, the same format the "+
					"admin API download produces.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("start",
				mcp.Description("Range start, RFC 3339 or YYYY-MM-DD"),
			),
			mcp.WithString("end",
				mcp.Description("Range end, RFC 3339 or YYYY-MM-DD"),
			),
		),
		s.handleExportLogs,
	)

	srv.AddTool(
		mcp.NewTool("keygate_list_tools",
			mcp.WithDescription(
				"List the configured tool access policies: tool ID, whether an "+
					"invite is required, and any user allow-list.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListTools,
	)
}

func (s *MCPServer) handleQueryLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := auditlog.Filter{
		Start:    parseTimeArg(optionalString(request, "start")),
		End:      parseTimeArg(optionalString(request, "end")),
		ToolID:   optionalString(request, "tool"),
		UserName: optionalString(request, "user"),
	}
	limit := clamp(optionalInt(request, "limit", 50), 1, 1000)

	entries, err := s.reader.Query(ctx, f, limit)
	if err != nil {
		return toolError("log query failed: %v", err)
	}
	return successJSON(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *MCPServer) handleLogStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := clamp(optionalInt(request, "days", 7), 1, 365)

	stats, err := s.reader.Stats(ctx, days)
	if err != nil {
		return toolError("log stats failed: %v", err)
	}
	return successJSON(stats)
}

func (s *MCPServer) handleExportLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := auditlog.Filter{
		Start: parseTimeArg(optionalString(request, "start")),
		End:   parseTimeArg(optionalString(request, "end")),
	}

	out, err := s.reader.ExportCSV(ctx, f)
	if err != nil {
		return toolError("log export failed: %v", err)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *MCPServer) handleListTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successJSON(s.tools.All())
}

// parseTimeArg accepts RFC 3339 or plain dates; empty or unparseable input
// yields the zero time, which the filter treats as unbounded.
func parseTimeArg(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t
	}
	return time.Time{}
}
