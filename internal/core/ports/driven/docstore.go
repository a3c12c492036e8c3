package driven

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// DocumentStore persists documents and chunk text.
type DocumentStore interface {
	// SaveDocument creates or updates document metadata and status.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// CommitDocument replaces the document's chunks and saves the document in
	// a single transaction. Either everything is visible or nothing is.
	CommitDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// UpdateStatus records a state-machine transition. step and reason are
	// kept for failed documents and cleared otherwise.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, step domain.Step, reason string) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// FindByContentHash returns documents with the given content hash.
	FindByContentHash(ctx context.Context, hash string) ([]domain.Document, error)

	// FindByPath returns documents ingested from the given path, newest first.
	FindByPath(ctx context.Context, path string) ([]domain.Document, error)

	// GetChunk retrieves a chunk by ID. Missing chunks return domain.ErrNotFound.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// JobStore persists pipeline job checkpoints.
type JobStore interface {
	// Save creates or updates a job.
	Save(ctx context.Context, job *domain.PipelineJob) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*domain.PipelineJob, error)

	// GetByDocument returns the most recent job for a document.
	GetByDocument(ctx context.Context, documentID string) (*domain.PipelineJob, error)

	// List returns jobs, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]domain.PipelineJob, error)

	// DeleteByDocument removes all jobs for a document.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// StagedDocument is the staging record of a document in flight.
// Until Commit is set it is a checkpoint of completed steps, used to resume
// without repeating work. Once Commit is set it is the write-ahead record of
// an index commit, holding every chunk with its embedding.
type StagedDocument struct {
	Document domain.Document `json:"document"`
	Chunks   []domain.Chunk  `json:"chunks"`
	Commit   bool            `json:"commit"`
}

// StagingArea holds staging records. A record with Commit set that exists
// when the memory is opened marks a commit that must be replayed.
type StagingArea interface {
	// Write durably stores the record, replacing any previous one.
	Write(ctx context.Context, staged *StagedDocument) error

	// Read returns the record for a document, or domain.ErrNotFound.
	Read(ctx context.Context, documentID string) (*StagedDocument, error)

	// Remove deletes the record. Removing a missing record is not an error.
	Remove(ctx context.Context, documentID string) error

	// List returns the document IDs with pending records.
	List(ctx context.Context) ([]string, error)
}
