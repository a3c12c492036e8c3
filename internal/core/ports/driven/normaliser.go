package driven

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// Normaliser extracts plain text from a raw file.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the title and text of a raw file.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Partitioning is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Document has Title, MIMEType, Content and Metadata populated.
	Document domain.Document
}
