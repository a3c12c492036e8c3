// Package summariser appends a generated document summary as an extra chunk.
package summariser

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/postprocessors/partitioner"
)

// Defaults for summary generation.
const (
	DefaultMaxTokens      = 256
	DefaultMaxInputTokens = 2000
)

// Processor asks the generation service for a summary of the whole document
// and appends it to the chunk list with Kind set to summary.
type Processor struct {
	generator      driven.GenerationService
	prompts        driven.PromptStore
	maxTokens      int
	maxInputTokens int
	maxChunkTokens int
}

// Option configures the summariser.
type Option func(*Processor)

// WithMaxTokens caps the generated summary length.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithMaxInputTokens caps how much of the document is sent for summarising.
func WithMaxInputTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxInputTokens = n
		}
	}
}

// WithMaxChunkTokens truncates summaries to the chunk budget so a summary
// chunk never exceeds what the partitioner would produce.
func WithMaxChunkTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChunkTokens = n
		}
	}
}

// New creates a summariser.
func New(generator driven.GenerationService, prompts driven.PromptStore, opts ...Option) *Processor {
	p := &Processor{
		generator:      generator,
		prompts:        prompts,
		maxTokens:      DefaultMaxTokens,
		maxInputTokens: DefaultMaxInputTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "summariser"
}

// Process appends a summary chunk. Documents without content, and summaries
// that come back empty, leave the chunks unchanged.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if p.generator == nil {
		return nil, domain.ErrGenerationUnavailable
	}
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return chunks, nil
	}

	template, err := p.prompts.Load(driven.PromptSummarise)
	if err != nil {
		return nil, fmt.Errorf("load summarise prompt: %w", err)
	}
	prompt := strings.ReplaceAll(template, "{{content}}", truncateTokens(content, p.maxInputTokens))

	maxTokens := p.maxTokens
	if p.maxChunkTokens > 0 {
		maxTokens = min(maxTokens, p.maxChunkTokens)
	}
	summary, err := p.generator.GenerateComplete(ctx, prompt, driven.GenerateOptions{MaxTokens: maxTokens})
	if err != nil {
		return nil, fmt.Errorf("%w: summarise: %w", domain.ErrGenerationService, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return chunks, nil
	}
	if p.maxChunkTokens > 0 {
		summary = truncateTokens(summary, p.maxChunkTokens)
	}

	position := len(chunks)
	return append(chunks, domain.Chunk{
		ID:         domain.ChunkID(doc.ID, position),
		DocumentID: doc.ID,
		Position:   position,
		Kind:       domain.ChunkKindSummary,
		Content:    summary,
		TokenCount: partitioner.CountTokens(summary),
	}), nil
}

func truncateTokens(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ")
}
