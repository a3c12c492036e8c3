package postprocessors

import (
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/postprocessors/partitioner"
	"github.com/custodia-labs/ragmem/internal/postprocessors/summariser"
)

// Dependencies are the services the built-in processors need.
type Dependencies struct {
	Generator driven.GenerationService
	Prompts   driven.PromptStore
}

// RegisterDefaults registers the partitioner, and the summariser when a
// generator and prompts are available.
func RegisterDefaults(r *Registry, deps Dependencies) {
	r.Register(domain.StepPartition, newPartitioner)
	if deps.Generator == nil || deps.Prompts == nil {
		return
	}
	r.Register(domain.StepSummarize, func(s domain.AppSettings) (driven.PostProcessor, error) {
		return summariser.New(deps.Generator, deps.Prompts,
			summariser.WithMaxTokens(s.Generation.MaxTokens),
			summariser.WithMaxChunkTokens(s.Partition.MaxTokensPerChunk)), nil
	})
}

func newPartitioner(s domain.AppSettings) (driven.PostProcessor, error) {
	return partitioner.New(
		partitioner.WithMaxTokensPerChunk(s.Partition.MaxTokensPerChunk),
		partitioner.WithMaxTokensPerLine(s.Partition.MaxTokensPerLine),
		partitioner.WithOverlapTokens(s.Partition.OverlapTokens),
	)
}
