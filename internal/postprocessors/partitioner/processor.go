// Package partitioner provides a token-bounded text partitioning processor.
package partitioner

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// Default budgets, in whitespace-delimited tokens.
const (
	DefaultMaxTokensPerChunk = 200
	DefaultMaxTokensPerLine  = 70
	DefaultOverlapTokens     = 25
)

// Processor splits document content into overlapping, token-bounded chunks.
// It implements the PostProcessor interface.
type Processor struct {
	maxTokensPerChunk int
	maxTokensPerLine  int
	overlapTokens     int
}

// Option configures the partitioner.
type Option func(*Processor)

// WithMaxTokensPerChunk sets the chunk budget.
func WithMaxTokensPerChunk(n int) Option {
	return func(p *Processor) {
		p.maxTokensPerChunk = n
	}
}

// WithMaxTokensPerLine sets the line budget.
func WithMaxTokensPerLine(n int) Option {
	return func(p *Processor) {
		p.maxTokensPerLine = n
	}
}

// WithOverlapTokens sets the overlap carried between consecutive chunks.
func WithOverlapTokens(n int) Option {
	return func(p *Processor) {
		p.overlapTokens = n
	}
}

// New creates a partitioner. Budgets are validated eagerly: an overlap that
// is not smaller than the chunk budget fails with domain.ErrInvalidConfig.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		maxTokensPerChunk: DefaultMaxTokensPerChunk,
		maxTokensPerLine:  DefaultMaxTokensPerLine,
		overlapTokens:     DefaultOverlapTokens,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.maxTokensPerChunk, p.maxTokensPerLine, p.overlapTokens); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "partitioner"
}

// Process partitions the document content into text chunks.
// Input chunks are ignored; this processor creates the chunk list.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.Content == "" {
		return nil, nil
	}

	segments, err := Partition(doc.Content, p.maxTokensPerChunk, p.maxTokensPerLine, p.overlapTokens)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = domain.Chunk{
			ID:          domain.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Position:    i,
			Kind:        domain.ChunkKindText,
			Content:     seg.Text,
			TokenCount:  seg.TokenCount,
			StartOffset: seg.StartOffset,
			EndOffset:   seg.EndOffset,
		}
	}
	return chunks, nil
}
