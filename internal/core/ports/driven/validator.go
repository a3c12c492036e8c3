package driven

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// ProviderValidator contacts AI providers to confirm a configuration works.
// A provider that is not configured validates as nil.
type ProviderValidator interface {
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	ValidateGeneration(ctx context.Context, settings *domain.GenerationSettings) error
}
