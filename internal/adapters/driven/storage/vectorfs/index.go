package vectorfs

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// entry is an index entry with its precomputed vector norm.
type entry struct {
	domain.IndexEntry
	norm float64
}

// snapshot is an immutable view of the index. Writers build a new snapshot
// and publish it; readers never see a partially applied write.
type snapshot struct {
	entries []entry
	byChunk map[string]int
	dims    int
	nextSeq uint64
}

var emptySnapshot = &snapshot{byChunk: map[string]int{}}

// Index is an in-memory vector index persisted to a directory.
type Index struct {
	dir   string
	model string

	mu     sync.Mutex // serialises writers
	snap   atomic.Pointer[snapshot]
	closed atomic.Bool
}

// Option configures the index.
type Option func(*Index)

// WithModel records the embedding model name in the manifest.
func WithModel(model string) Option {
	return func(idx *Index) {
		idx.model = model
	}
}

// New creates an empty index stored under dir. Call Load to read a
// previously persisted index.
func New(dir string, opts ...Option) *Index {
	idx := &Index{dir: dir}
	for _, opt := range opts {
		opt(idx)
	}
	idx.snap.Store(emptySnapshot)
	return idx
}

// Dir returns the index directory.
func (idx *Index) Dir() string {
	return idx.dir
}

// Upsert adds entries or replaces entries with the same chunk ID. A replaced
// entry keeps its original sequence number. All entries become visible at once.
func (idx *Index) Upsert(ctx context.Context, entries ...domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if idx.closed.Load() {
		return fmt.Errorf("vectorfs: index is closed")
	}
	if len(entries) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	dims := cur.dims
	if len(cur.entries) == 0 {
		dims = len(entries[0].Embedding)
	}
	for _, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("%w: vectorfs: entry without chunk ID", domain.ErrInvalidArgument)
		}
		if len(e.Embedding) == 0 || len(e.Embedding) != dims {
			return fmt.Errorf("%w: vectorfs: embedding for %s has %d dimensions, index has %d",
				domain.ErrInvalidArgument, e.ChunkID, len(e.Embedding), dims)
		}
	}

	next := &snapshot{
		entries: slices.Clone(cur.entries),
		byChunk: make(map[string]int, len(cur.byChunk)+len(entries)),
		dims:    dims,
		nextSeq: cur.nextSeq,
	}
	for k, v := range cur.byChunk {
		next.byChunk[k] = v
	}

	for _, e := range entries {
		stored := entry{
			IndexEntry: domain.IndexEntry{
				ChunkID:    e.ChunkID,
				DocumentID: e.DocumentID,
				Embedding:  slices.Clone(e.Embedding),
			},
			norm: norm(e.Embedding),
		}
		if i, ok := next.byChunk[e.ChunkID]; ok {
			stored.Seq = next.entries[i].Seq
			next.entries[i] = stored
			continue
		}
		stored.Seq = next.nextSeq
		next.nextSeq++
		next.byChunk[e.ChunkID] = len(next.entries)
		next.entries = append(next.entries, stored)
	}

	idx.snap.Store(next)
	return nil
}

// Search returns the topK entries most similar to query by cosine similarity.
// Equal scores are ordered by insertion, earliest first.
func (idx *Index) Search(ctx context.Context, query []float32, topK int) ([]domain.VectorHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-K must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := idx.snap.Load()
	if len(s.entries) == 0 {
		return []domain.VectorHit{}, nil
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidArgument, len(query), s.dims)
	}

	qnorm := norm(query)
	hits := make([]domain.VectorHit, len(s.entries))
	for i, e := range s.entries {
		hits[i] = domain.VectorHit{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Similarity: cosine(query, qnorm, e.Embedding, e.norm),
			Seq:        e.Seq,
		}
	}

	// Entries are kept in sequence order, so a stable sort breaks ties by Seq.
	slices.SortStableFunc(hits, func(a, b domain.VectorHit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteDocument removes every entry belonging to the document.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	next := &snapshot{
		entries: make([]entry, 0, len(cur.entries)),
		byChunk: make(map[string]int, len(cur.byChunk)),
		dims:    cur.dims,
		nextSeq: cur.nextSeq,
	}
	for _, e := range cur.entries {
		if e.DocumentID == documentID {
			continue
		}
		next.byChunk[e.ChunkID] = len(next.entries)
		next.entries = append(next.entries, e)
	}
	if len(next.entries) == len(cur.entries) {
		return nil
	}
	if len(next.entries) == 0 {
		next.dims = 0
	}

	idx.snap.Store(next)
	return nil
}

// Reset removes all entries.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.snap.Store(emptySnapshot)
}

// Count returns the number of entries.
func (idx *Index) Count() int {
	return len(idx.snap.Load().entries)
}

// Dimensions returns the vector size, or 0 for an empty index.
func (idx *Index) Dimensions() int {
	return idx.snap.Load().dims
}

// DocumentCounts returns the number of entries per document ID.
func (idx *Index) DocumentCounts() map[string]int {
	s := idx.snap.Load()
	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.DocumentID]++
	}
	return counts
}

// Close marks the index closed. Persisted state is not written.
func (idx *Index) Close() error {
	idx.closed.Store(true)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
