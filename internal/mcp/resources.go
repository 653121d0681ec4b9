package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			"keygate://tools",
			"Tool Access Policies",
			mcp.WithResourceDescription(
				"The configured tool registry: each tool's ID, whether it "+
					"requires an invite, and any user allow-list.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleToolsResource,
	)
}

// handleToolsResource returns the tool policy registry as JSON.
func (s *MCPServer) handleToolsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(s.tools.All(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool policies: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keygate://tools",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
