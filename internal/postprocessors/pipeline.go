// Package postprocessors turns normalised document text into chunks.
// The partitioner creates chunks and the summariser appends one; a Pipeline
// chains whichever of them the configured ingest steps call for.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order, each receiving the previous output.
type Pipeline struct {
	procs []driven.PostProcessor
}

// NewPipeline chains procs in the given order.
func NewPipeline(procs ...driven.PostProcessor) *Pipeline {
	return &Pipeline{procs: procs}
}

// Process runs the whole chain from no chunks.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	return p.Continue(ctx, doc, nil)
}

// Continue runs the chain on chunks checkpointed by an earlier run.
func (p *Pipeline) Continue(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidArgument)
	}

	for _, proc := range p.procs {
		out, err := proc.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
		logger.Debug("%s: %d -> %d chunks for %s", proc.Name(), len(chunks), len(out), domain.ShortID(doc.ID))
		chunks = out
	}
	return chunks, nil
}

// Names lists processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.procs))
	for _, proc := range p.procs {
		names = append(names, proc.Name())
	}
	return names
}
