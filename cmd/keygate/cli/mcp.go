package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/config"
	kmcp "github.com/keygate/keygate/internal/mcp"
	"github.com/keygate/keygate/internal/registry"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the access audit
log and the tool policy registry as tools for AI agents like Claude.
Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with Claude Desktop or other MCP clients.`,
		Example: `  keygate mcp                               # stdio mode (for Claude Desktop)
  keygate mcp --transport http --port 3001  # streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	// Log to stderr only: stdout carries the JSON-RPC stream in stdio mode.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig()

	reader, closeStore, err := newReader(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	policies, err := config.LoadToolPolicies(cfg.ToolsFile)
	if err != nil {
		return fmt.Errorf("load tool policies: %w", err)
	}
	tools := registry.NewTools(policies)

	mcpSrv := kmcp.NewMCPServer(reader, tools, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
