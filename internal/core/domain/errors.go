package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Callers classify failures with errors.Is against these sentinels.
var (
	// ErrInvalidConfig indicates partition, search or storage settings are unusable.
	// It is fatal at setup time.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNotFound indicates a requested chunk, document or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingService indicates the embedding service failed or timed out.
	// Ingestion retries it with backoff; queries surface it directly.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService indicates the generation service failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrStorageCorruption indicates the vector index and document store disagree,
	// or that persisted files cannot be decoded. It is surfaced, never repaired.
	ErrStorageCorruption = errors.New("storage corruption")

	// ErrInvalidArgument indicates caller misuse, such as a non-positive top-K.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedType indicates no extractor handles a file's MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrMemoryLocked indicates another process holds the memory write lock.
	ErrMemoryLocked = errors.New("memory is locked by another process")

	// ErrEmbeddingUnavailable indicates no embedding service is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates no generation service is configured.
	// Search still works; answers cannot be produced.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// IngestError reports which document and step failed, and how often it was tried.
type IngestError struct {
	DocumentID string
	Path       string
	Step       Step
	Attempts   int
	Err        error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s (%s) failed at %s after %d attempt(s): %v",
		e.Path, ShortID(e.DocumentID), e.Step, e.Attempts, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
