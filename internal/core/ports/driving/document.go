package driving

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// DocumentService manages documents already in the memory.
type DocumentService interface {
	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID or unique ID prefix.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks returns the stored chunks of a document in order.
	GetChunks(ctx context.Context, id string) ([]domain.Chunk, error)

	// GetContent returns the concatenated text of all text chunks.
	GetContent(ctx context.Context, id string) (string, error)

	// Delete removes a document, its chunks and its index entries.
	Delete(ctx context.Context, id string) error

	// Check compares the vector index and document store.
	Check(ctx context.Context) (*domain.CheckReport, error)

	// Reindex rebuilds the vector index from stored chunk embeddings.
	Reindex(ctx context.Context) (int, error)
}

// MemoryService is the full surface of one memory instance.
type MemoryService interface {
	IngestService
	QueryService
	DocumentService
}
