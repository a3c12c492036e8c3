package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = withAccess(&cobra.Command{
	Use:   "serve",
	Short: "Serve the memory over HTTP",
	Long: `Starts the HTTP API:

  GET    /health
  GET    /metrics            Prometheus metrics
  POST   /ask                {"question": "..."}
  POST   /ask/stream         Server-Sent Events: sources, fragment..., done
  POST   /search             {"query": "...", "limit": 10}
  POST   /documents          {"path": "...", "steps": ["partition", ...]}
  GET    /documents
  GET    /documents/{id}
  DELETE /documents/{id}
  GET    /jobs?limit=N

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}, AccessWrite)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	server := httpapi.NewServer(memoryService)
	return server.Run(cmd.Context(), serveAddr, func(addr string) {
		cmd.Printf("Serving on http://%s\n", addr)
	})
}
