// Package mcp exposes the audit log and tool registry to AI agents over the
// Model Context Protocol. All tools are read-only; invite keys are never
// reachable through this surface.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/registry"
)

// MCPServer wraps the mcp-go server with keygate's tool and resource
// registrations.
type MCPServer struct {
	reader *auditlog.Reader
	tools  *registry.Tools
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with the audit-log tools.
// The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(reader *auditlog.Reader, tools *registry.Tools, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		reader: reader,
		tools:  tools,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Keygate Access Log",
		"0.1.0",
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go server, useful for testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
