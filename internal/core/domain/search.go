package domain

import "time"

// IndexEntry is a chunk vector as persisted in the vector index.
type IndexEntry struct {
	// ChunkID identifies the chunk the vector belongs to.
	ChunkID string `json:"chunk_id"`

	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// Embedding is the chunk vector.
	Embedding []float32 `json:"-"`

	// Seq is the insertion sequence assigned by the index. Exact score ties
	// are broken by ascending Seq.
	Seq uint64 `json:"seq"`
}

// VectorHit is a raw nearest-neighbour match from the vector index.
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Similarity float64
	Seq        uint64
}

// SearchResult is a retrieved chunk with its score and provenance.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk `json:"chunk"`

	// Document is the chunk's source document.
	Document Document `json:"document"`

	// Score is the cosine similarity between query and chunk, in [-1, 1].
	Score float64 `json:"score"`
}

// Source is a document cited by an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Relevance  float64 `json:"relevance"`
}

// SourceName returns the name shown in citations.
func (s Source) SourceName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Path
}

// NoAnswer is the answer text produced when no context is available.
const NoAnswer = "INFO NOT FOUND"

// Answer is a generated answer grounded in retrieved context.
type Answer struct {
	// Question is the user's question.
	Question string `json:"question"`

	// Text is the full generated answer.
	Text string `json:"text"`

	// Sources are the documents whose chunks were given to the generator,
	// in rank order.
	Sources []Source `json:"sources"`

	// Context holds the chunks that survived truncation.
	Context []SearchResult `json:"context,omitempty"`

	// Elapsed is the wall time from question to final fragment.
	Elapsed time.Duration `json:"elapsed"`
}

// HasAnswer reports whether the generator produced a grounded answer.
func (a *Answer) HasAnswer() bool {
	return a != nil && a.Text != "" && a.Text != NoAnswer
}

// ImportReport summarises one document of a batch import.
type ImportReport struct {
	Path     string    `json:"path"`
	Document *Document `json:"document,omitempty"`
	Skipped  bool      `json:"skipped"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
}

// CheckReport describes the consistency of the vector index and document store.
type CheckReport struct {
	Documents     int      `json:"documents"`
	IndexedChunks int      `json:"indexed_chunks"`
	IndexEntries  int      `json:"index_entries"`
	Problems      []string `json:"problems,omitempty"`
}

// OK reports whether no problems were found.
func (r *CheckReport) OK() bool {
	return len(r.Problems) == 0
}
