package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var documentCmd = withAccess(&cobra.Command{
	Use:   "document",
	Short: "Manage documents in the memory",
	Long:  `List, inspect or delete imported documents.`,
}, AccessRead)

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Long: `Shows a document's details. The ID may be shortened to any unique prefix.
Use --content to print the extracted text or --chunks to list the chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentShow,
}

var documentDeleteCmd = withAccess(&cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document from the memory",
	Long:  `Removes a document, its chunks and its index entries.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}, AccessWrite)

var (
	documentFormat  string
	documentContent bool
	documentChunks  bool
)

func init() {
	documentListCmd.Flags().StringVarP(&documentFormat, "format", "f", "table", "output format: table, json, yaml")
	documentShowCmd.Flags().BoolVar(&documentContent, "content", false, "print the extracted text")
	documentShowCmd.Flags().BoolVar(&documentChunks, "chunks", false, "list the stored chunks")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	docs, err := memoryService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}

	switch documentFormat {
	case "json":
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(docs)
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Print(string(data))
		return nil
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q", documentFormat)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Printf("%-12s  %-9s  %6s  %s\n", "ID", "STATUS", "CHUNKS", "PATH")
	for i := range docs {
		cmd.Printf("%-12s  %-9s  %6d  %s\n",
			domain.ShortID(docs[i].ID), docs[i].Status, docs[i].ChunkCount, docs[i].Path)
	}
	cmd.Println()
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}
	ctx := cmd.Context()

	doc, err := memoryService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentContent {
		content, err := memoryService.GetContent(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to get document content: %w", err)
		}
		cmd.Println(content)
		return nil
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Path:     %s\n", doc.Path)
	cmd.Printf("  Type:     %s\n", doc.MIMEType)
	cmd.Printf("  Status:   %s\n", doc.Status)
	if doc.Status == domain.StatusFailed {
		cmd.Printf("  Failed:   %s after %d attempt(s): %s\n", doc.FailedStep, doc.Attempts, doc.FailureReason)
	}
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeLayout))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		keys := make([]string, 0, len(doc.Metadata))
		for k := range doc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s: %v\n", k, doc.Metadata[k])
		}
	}

	if documentChunks {
		chunks, err := memoryService.GetChunks(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to get chunks: %w", err)
		}
		cmd.Println("\n  Chunks:")
		for _, c := range chunks {
			cmd.Printf("    [%d] %s, %d tokens: %s\n", c.Position, c.Kind, c.TokenCount, snippetOf(c.Content, 60))
		}
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	if err := memoryService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
