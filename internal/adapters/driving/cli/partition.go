package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var partitionJSON bool

var partitionCmd = withAccess(&cobra.Command{
	Use:   "partition <path>",
	Short: "Preview how a file is split into chunks",
	Long: `Extracts a file and runs the configured post-processors on it without
storing anything. Useful for tuning the partition.* settings.`,
	Args: cobra.ExactArgs(1),
	RunE: runPartition,
}, AccessRead)

func init() {
	partitionCmd.Flags().BoolVar(&partitionJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(partitionCmd)
}

func runPartition(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	chunks, err := memoryService.Preview(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("partition failed: %w", err)
	}

	if partitionJSON {
		data, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal chunks: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	total := 0
	for _, c := range chunks {
		total += c.TokenCount
		cmd.Printf("--- chunk %d (%s, %d tokens, bytes %d-%d)\n", c.Position, c.Kind, c.TokenCount, c.StartOffset, c.EndOffset)
		cmd.Println(c.Content)
	}
	cmd.Printf("%d chunks, %d tokens\n", len(chunks), total)
	return nil
}
