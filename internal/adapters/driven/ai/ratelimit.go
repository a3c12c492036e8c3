package ai

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// newLimiter allows rps requests per second with a burst of at least one.
func newLimiter(rps float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
}

// rateLimitedEmbedding waits on a limiter before each request.
// A batch counts as one request.
type rateLimitedEmbedding struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// RateLimitEmbedding wraps svc so it sends at most rps requests per second.
// rps <= 0 returns svc unchanged.
func RateLimitEmbedding(svc driven.EmbeddingService, rps float64) driven.EmbeddingService {
	if rps <= 0 || svc == nil {
		return svc
	}
	return &rateLimitedEmbedding{EmbeddingService: svc, limiter: newLimiter(rps)}
}

func (r *rateLimitedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.Embed(ctx, text)
}

func (r *rateLimitedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.EmbedBatch(ctx, texts)
}

// rateLimitedGeneration waits on a limiter before each generation call.
type rateLimitedGeneration struct {
	driven.GenerationService
	limiter *rate.Limiter
}

// RateLimitGeneration wraps svc so it starts at most rps generations per second.
// rps <= 0 returns svc unchanged.
func RateLimitGeneration(svc driven.GenerationService, rps float64) driven.GenerationService {
	if rps <= 0 || svc == nil {
		return svc
	}
	return &rateLimitedGeneration{GenerationService: svc, limiter: newLimiter(rps)}
}

func (r *rateLimitedGeneration) Generate(
	ctx context.Context, prompt string, opts driven.GenerateOptions,
) (<-chan driven.Fragment, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.GenerationService.Generate(ctx, prompt, opts)
}

func (r *rateLimitedGeneration) GenerateComplete(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.GenerationService.GenerateComplete(ctx, prompt, opts)
}
