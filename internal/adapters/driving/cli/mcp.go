package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = withAccess(&cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to serve the streamable HTTP transport on 127.0.0.1 instead,
for example to try the tools in MCP Inspector. The endpoint is /mcp.

Tools: ask, search, import_document.
Resources: ragmem://documents, ragmem://documents/{documentId}.

Examples:
  # Stdio mode (default, for Claude Desktop)
  ragmem mcp serve

  # HTTP mode on http://127.0.0.1:8080/mcp
  ragmem mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "ragmem": {
        "command": "/path/to/ragmem",
        "args": ["--memory", "/path/to/memory", "mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}, AccessWrite)

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "serve streamable HTTP on this local port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := mcp.NewServer(mcp.PortsFor(memoryService), mcp.WithVersion(version))
	if err != nil {
		return err
	}

	if port > 0 {
		return server.RunHTTP(cmd.Context(), fmt.Sprintf("127.0.0.1:%d", port), func(addr string) {
			cmd.Printf("MCP server listening on http://%s%s\n", addr, mcp.Endpoint)
		})
	}

	return server.Run(cmd.Context())
}
