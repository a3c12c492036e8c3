package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

var (
	jobsLimit int
	jobsJSON  bool
)

var jobsCmd = withAccess(&cobra.Command{
	Use:   "jobs",
	Short: "List pipeline jobs",
	Long: `Lists ingestion jobs, newest first. A failed job shows the step it
stopped at; importing the same file again resumes from there.`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}, AccessRead)

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum number of jobs (0 for all)")
	jobsCmd.Flags().BoolVar(&jobsJSON, "json", false, "output jobs as JSON")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if err := requireMemory(); err != nil {
		return err
	}
	if jobsLimit < 0 {
		return fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidArgument)
	}

	jobs, err := memoryService.ListJobs(cmd.Context(), jobsLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobsJSON {
		if jobs == nil {
			jobs = []domain.PipelineJob{}
		}
		data, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal jobs: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for i := range jobs {
		job := &jobs[i]
		steps := make([]string, len(job.Steps))
		for j, s := range job.Steps {
			steps[j] = string(s)
		}
		cmd.Printf("%s  %-9s  %s\n", domain.ShortID(job.ID), job.Status, job.Path)
		cmd.Printf("    Steps: %s", strings.Join(steps, ","))
		if job.LastCompletedStep != "" {
			cmd.Printf(" (done through %s)", job.LastCompletedStep)
		}
		cmd.Println()
		cmd.Printf("    Started: %s\n", job.CreatedAt.Format(timeLayout))
		if job.Error != "" {
			cmd.Printf("    Error: %s (attempts: %d)\n", job.Error, job.Attempts)
		}
	}
	return nil
}
