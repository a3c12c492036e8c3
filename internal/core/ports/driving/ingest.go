package driving

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// IngestService imports documents into the memory.
type IngestService interface {
	// ImportDocument runs the given pipeline steps on one file.
	// An empty step set means the default pipeline without summarisation.
	// Importing an unchanged, already indexed file returns the existing document.
	ImportDocument(ctx context.Context, path string, steps []domain.Step) (*domain.Document, error)

	// ImportDocuments ingests independent files in parallel. Per-file failures
	// are reported in the result rather than returned.
	ImportDocuments(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error)

	// Preview extracts and partitions a file without storing anything.
	Preview(ctx context.Context, path string) ([]domain.Chunk, error)

	// ListJobs returns pipeline jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error)
}
