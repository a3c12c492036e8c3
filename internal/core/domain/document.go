package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Document represents one ingested file.
// A document's ID is derived from its path and content, so re-importing an
// unchanged file resolves to the same document.
type Document struct {
	// ID is the hex SHA-256 of path and content.
	ID string `json:"id" yaml:"id"`

	// Path is the absolute source path the document was read from.
	Path string `json:"path" yaml:"path"`

	// Title is a human-readable name, extracted from content or derived from the path.
	Title string `json:"title" yaml:"title"`

	// MIMEType is the detected type used to pick an extractor.
	MIMEType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`

	// ContentHash is the hex SHA-256 of the raw file bytes.
	ContentHash string `json:"content_hash" yaml:"content_hash"`

	// Content is the extracted text. It is not persisted by the document store.
	Content string `json:"-" yaml:"-"`

	// Status is the current ingestion state.
	Status DocumentStatus `json:"status" yaml:"status"`

	// FailedStep is the step that failed when Status is StatusFailed.
	FailedStep Step `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`

	// FailureReason describes the last failure.
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`

	// Attempts counts embedding attempts consumed by the last run.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`

	// ChunkCount is the number of chunks committed for the document.
	ChunkCount int `json:"chunk_count" yaml:"chunk_count"`

	// Metadata holds extractor-specific fields such as format.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// CreatedAt is when the document was first seen.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is the last status change.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ChunkKind distinguishes partitioned text from generated summaries.
type ChunkKind string

const (
	// ChunkKindText is a span of the document's own text.
	ChunkKindText ChunkKind = "text"

	// ChunkKindSummary is a generated summary of the whole document.
	ChunkKindSummary ChunkKind = "summary"
)

// Chunk represents a bounded span of a document's text.
// Chunks are the unit of embedding and retrieval.
type Chunk struct {
	// ID is "<documentID>-<position>".
	ID string `json:"id" yaml:"id"`

	// DocumentID references the owning document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Position is the chunk's ordinal within the document.
	Position int `json:"position" yaml:"position"`

	// Kind tells text chunks from summary chunks.
	Kind ChunkKind `json:"kind" yaml:"kind"`

	// Content is the chunk text.
	Content string `json:"content" yaml:"content"`

	// TokenCount is the number of tokens in Content.
	TokenCount int `json:"token_count" yaml:"token_count"`

	// StartOffset and EndOffset are byte offsets into the extracted text.
	StartOffset int `json:"start_offset" yaml:"start_offset"`
	EndOffset   int `json:"end_offset" yaml:"end_offset"`

	// Embedding is the vector for this chunk (optional until embedded).
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`
}

// ChunkID builds the stable identifier of a document's chunk.
func ChunkID(documentID string, position int) string {
	return documentID + "-" + strconv.Itoa(position)
}

// DocumentID derives the stable document identifier from path and content.
func DocumentID(path string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ShortID returns the first 12 characters of an ID for display.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
