package driven

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// VectorIndex stores chunk vectors and answers cosine-similarity queries.
// Ties are broken by insertion order.
type VectorIndex interface {
	// Upsert adds or replaces entries. All entries of one call become visible
	// to readers at once.
	Upsert(ctx context.Context, entries ...domain.IndexEntry) error

	// Search returns the topK entries most similar to query, best first.
	// topK <= 0 fails with domain.ErrInvalidArgument.
	Search(ctx context.Context, query []float32, topK int) ([]domain.VectorHit, error)

	// DeleteDocument removes every entry belonging to the document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Persist writes the current snapshot to durable storage.
	Persist(ctx context.Context) error

	// Load replaces in-memory state with the persisted snapshot.
	// A missing or empty directory yields an empty index.
	Load(ctx context.Context) error

	// Count returns the number of entries.
	Count() int

	// Dimensions returns the vector size, or 0 for an empty index.
	Dimensions() int

	// DocumentCounts returns the number of entries per document ID.
	DocumentCounts() map[string]int

	// Close releases resources.
	Close() error
}
