// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	hashembed "github.com/custodia-labs/ragmem/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/ragmem/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragmem/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/ragmem/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/ragmem/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragmem/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the AI services built from settings.
type Services struct {
	Embedding  driven.EmbeddingService
	Generation driven.GenerationService // nil when generation is not configured
	Warnings   []string                 // Non-fatal issues, such as an unreachable generator.
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	if s.Embedding != nil {
		_ = s.Embedding.Close()
	}
	if s.Generation != nil {
		_ = s.Generation.Close()
	}
}

// Build creates both services from settings. The embedding service is
// required; a generation service that cannot be created or reached is
// reported as a warning and left nil, so search keeps working.
// With validate set, both services are pinged.
func Build(ctx context.Context, settings *domain.AppSettings, validate bool) (*Services, error) {
	embedder, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	if validate {
		if err := ping(ctx, embedder.Ping); err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
		}
	}

	svcs := &Services{Embedding: embedder}

	gen, err := CreateGenerationService(&settings.Generation)
	switch {
	case err != nil:
		svcs.Warnings = append(svcs.Warnings, fmt.Sprintf("generation disabled: %v", err))
	case gen != nil && validate:
		if err := ping(ctx, gen.Ping); err != nil {
			_ = gen.Close()
			svcs.Warnings = append(svcs.Warnings, fmt.Sprintf("generation disabled: service unreachable (%v)", err))
		} else {
			svcs.Generation = gen
		}
	default:
		svcs.Generation = gen
	}
	return svcs, nil
}

// ValidateEmbeddingConfig creates an embedding service and pings it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()
	return ping(ctx, svc.Ping)
}

// ValidateGenerationConfig creates a generation service and pings it.
func ValidateGenerationConfig(ctx context.Context, settings *domain.GenerationSettings) error {
	svc, err := CreateGenerationService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()
	return ping(ctx, svc.Ping)
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.SupportsEmbedding() {
		return nil, fmt.Errorf("%s does not provide embeddings, use ollama, openai or hash", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, &domain.ConfigError{Field: "embedding.api_key", Reason: "required for " + settings.Provider.String()}
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderHash:
		svc = hashembed.NewEmbeddingService(settings.Dimensions)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return RateLimitEmbedding(svc, settings.RequestsPerSecond), nil
}

// CreateGenerationService creates the appropriate generation service based on settings.
// Returns nil if the provider is not configured.
func CreateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.SupportsGeneration() {
		return nil, fmt.Errorf("%s does not generate text", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, &domain.ConfigError{Field: "generation.api_key", Reason: "required for " + settings.Provider.String()}
	}

	var (
		svc driven.GenerationService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewGenerationService(ollamallm.Config{
			BaseURL:     settings.BaseURL,
			Model:       settings.Model,
			ContextSize: settings.ContextSize,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewGenerationService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewGenerationService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return RateLimitGeneration(svc, settings.RequestsPerSecond), nil
}
