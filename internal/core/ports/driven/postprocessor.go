package driven

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// PostProcessor turns normalised document text into chunks.
// PostProcessors are chained in a pipeline (partitioning, then summarising).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and the chunks produced so far.
	// A creating processor (the partitioner) receives nil and returns new chunks.
	// An appending processor (the summariser) returns the input plus its own chunks.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
