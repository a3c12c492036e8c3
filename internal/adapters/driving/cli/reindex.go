package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reindexCmd = withAccess(&cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index",
	Long: `Rebuilds the vector index from the embeddings kept in the document
store. No embedding calls are made.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}, AccessWrite)

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	start := time.Now()
	n, err := memoryService.Reindex(cmd.Context())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	cmd.Printf("Reindexed %d chunks in %s\n", n, time.Since(start).Round(time.Millisecond))
	return nil
}
