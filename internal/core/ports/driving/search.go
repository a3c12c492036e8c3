package driving

import (
	"context"
	"iter"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// QueryService answers questions from the memory.
type QueryService interface {
	// Search returns the chunks most similar to query, best first.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)

	// Ask retrieves context and blocks until the full answer is generated.
	Ask(ctx context.Context, question string) (*domain.Answer, error)

	// AskStream retrieves context and returns a stream of answer fragments.
	AskStream(ctx context.Context, question string) (AnswerStream, error)
}

// AnswerStream is a lazy, finite answer. It can be consumed once.
type AnswerStream interface {
	// Fragments yields generated text in order. Iteration stops early when
	// the consumer breaks or the stream's context is cancelled. A second
	// iteration yields nothing.
	Fragments() iter.Seq2[string, error]

	// Sources returns the documents cited by the answer. It is available
	// before the first fragment.
	Sources() []domain.Source

	// Answer returns the concatenated text once the fragments are exhausted.
	Answer() *domain.Answer

	// Close stops generation and releases the stream.
	Close()
}
