package ai

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.ProviderValidator = Validator{}

// Validator builds a throwaway client for each check and pings it.
type Validator struct{}

func (Validator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(ctx, settings)
}

func (Validator) ValidateGeneration(ctx context.Context, settings *domain.GenerationSettings) error {
	return ValidateGenerationConfig(ctx, settings)
}
