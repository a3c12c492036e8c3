package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

var checkCmd = withAccess(&cobra.Command{
	Use:   "check",
	Short: "Verify the memory is consistent",
	Long: `Compares the vector index with the document store and reports
documents whose index entries are missing or orphaned. Nothing is repaired;
run 'ragmem reindex' to rebuild the index from stored embeddings.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}, AccessRead)

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	report, err := memoryService.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	cmd.Printf("Documents:      %d\n", report.Documents)
	cmd.Printf("Indexed chunks: %d\n", report.IndexedChunks)
	cmd.Printf("Index entries:  %d\n", report.IndexEntries)

	if report.OK() {
		cmd.Println("Memory is consistent.")
		return nil
	}

	cmd.Println()
	cmd.Println("Problems:")
	for _, p := range report.Problems {
		cmd.Printf("  - %s\n", p)
	}
	return fmt.Errorf("%w: %d problem(s) found", domain.ErrStorageCorruption, len(report.Problems))
}
