package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

var (
	importSteps       string
	importWithSummary bool
	importWorkers     int
)

var importCmd = withAccess(&cobra.Command{
	Use:   "import <path>...",
	Short: "Import documents into the memory",
	Long: `Imports files into the memory. Directories are walked recursively and
hidden entries are ignored.

Each file runs through the pipeline steps: partition, summarize, embed and
index. By default every step except summarize runs. An unchanged file that
is already indexed is left as it is.

Examples:
  ragmem import notes.md report.pdf
  ragmem import ./handbook --with-summary
  ragmem import draft.txt --steps partition,embed`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}, AccessWrite)

func init() {
	importCmd.Flags().StringVar(&importSteps, "steps", "", "comma separated pipeline steps (partition,summarize,embed,index)")
	importCmd.Flags().BoolVar(&importWithSummary, "with-summary", false, "add the summarize step")
	importCmd.Flags().IntVarP(&importWorkers, "workers", "w", 0, "documents imported in parallel (default from ingest.workers)")
	configurers[importCmd] = func(s *domain.AppSettings) {
		if importWorkers > 0 {
			s.Ingest.Workers = importWorkers
		}
	}
	rootCmd.AddCommand(importCmd)
}

// importSet is the expanded argument list. Files found by walking a
// directory may be skipped when their type is unsupported.
type importSet struct {
	paths  []string
	walked map[string]bool
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	steps, err := parseImportSteps(importSteps, importWithSummary)
	if err != nil {
		return err
	}
	set, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(set.paths) == 0 {
		cmd.Println("No files to import.")
		return nil
	}

	start := time.Now()
	var reports []domain.ImportReport
	if len(set.paths) == 1 || importWorkers == 1 {
		reports = importSequential(cmd, set.paths, steps)
	} else {
		cmd.Printf("Importing %d documents\n", len(set.paths))
		reports, err = memoryService.ImportDocuments(cmd.Context(), set.paths, steps)
		if err != nil && len(reports) == 0 {
			return fmt.Errorf("import failed: %w", err)
		}
	}

	failed := printImportReports(cmd, reports, set.walked)
	cmd.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(reports))
	}
	return nil
}

func importSequential(cmd *cobra.Command, paths []string, steps []domain.Step) []domain.ImportReport {
	reports := make([]domain.ImportReport, 0, len(paths))
	for i, path := range paths {
		if cmd.Context().Err() != nil {
			break
		}
		cmd.Printf("Importing %d of %d: %s\n", i+1, len(paths), path)
		report := domain.ImportReport{Path: path}
		doc, err := memoryService.ImportDocument(cmd.Context(), path, steps)
		report.Document = doc
		if err != nil {
			report.Err = err
			report.Error = err.Error()
		}
		reports = append(reports, report)
	}
	return reports
}

// printImportReports prints one line per document and returns the number of failures.
func printImportReports(cmd *cobra.Command, reports []domain.ImportReport, walked map[string]bool) int {
	var imported, unchanged, ignored, failed int
	for _, r := range reports {
		switch {
		case r.Err != nil && walked[r.Path] && errors.Is(r.Err, domain.ErrUnsupportedType):
			ignored++
			cmd.Printf("  ignored    %s (unsupported type)\n", r.Path)
		case r.Err != nil:
			failed++
			cmd.Printf("  failed     %s: %v\n", r.Path, r.Err)
		case r.Skipped:
			unchanged++
			cmd.Printf("  unchanged  %s\n", r.Path)
		default:
			imported++
			if r.Document != nil {
				cmd.Printf("  imported   %s (%s, %d chunks)\n", r.Path, domain.ShortID(r.Document.ID), r.Document.ChunkCount)
			} else {
				cmd.Printf("  imported   %s\n", r.Path)
			}
		}
	}
	cmd.Printf("%d imported, %d unchanged, %d ignored, %d failed\n", imported, unchanged, ignored, failed)
	return failed
}

func parseImportSteps(raw string, withSummary bool) ([]domain.Step, error) {
	if strings.TrimSpace(raw) == "" {
		if withSummary {
			return domain.PipelineWithSummary(), nil
		}
		return nil, nil
	}
	steps, err := domain.ParseSteps(raw)
	if err != nil {
		return nil, err
	}
	if withSummary && !domain.HasStep(steps, domain.StepSummarize) {
		return domain.NormaliseSteps(append(steps, domain.StepSummarize))
	}
	return steps, nil
}

// expandPaths resolves arguments to absolute file paths, walking directories.
func expandPaths(args []string) (*importSet, error) {
	set := &importSet{walked: make(map[string]bool)}
	seen := make(map[string]bool)
	add := func(path string, walked bool) {
		if seen[path] {
			return
		}
		seen[path] = true
		set.paths = append(set.paths, path)
		if walked {
			set.walked[path] = true
		}
	}

	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		if !info.IsDir() {
			add(abs, false)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path, true)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return set, nil
}
