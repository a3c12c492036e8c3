// Package plaintext is the fallback extractor: anything text-like that no
// richer normaliser claims is stored as is.
package plaintext

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// fallbackPriority sits below every format-specific normaliser.
const fallbackPriority = 5

const bom = "\ufeff"

// textTypes lists source, data and markup types read verbatim. Markdown
// and HTML are here too so they still import if their normaliser fails
// to register.
var textTypes = []string{
	"text/plain", "text/csv", "text/markdown", "text/html", "text/css",
	"text/x-go", "text/x-python", "text/x-rust", "text/x-shellscript", "text/x-sql",
	"text/javascript", "text/typescript", "text/typescript-jsx",
	"text/yaml", "text/toml", "application/json", "application/xml",
}

type Normaliser struct{}

func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	return append([]string(nil), textTypes...)
}

func (n *Normaliser) Priority() int {
	return fallbackPriority
}

// Normalise decodes raw as UTF-8. A leading byte order mark is dropped,
// CRLF and lone CR become LF, and invalid bytes become U+FFFD, so chunk
// offsets always index the stored text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidArgument)
	}

	text := strings.TrimPrefix(string(raw.Content), bom)
	text = strings.ToValidUTF8(text, "�")
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	title := raw.MetadataTitle()
	if title == "" {
		title = raw.TitleFromPath()
	}

	doc := domain.Document{
		Path:     raw.Path,
		Title:    title,
		MIMEType: raw.MIMEType,
		Content:  text,
		Metadata: raw.NormalisedMetadata("text"),
	}
	return &driven.NormaliseResult{Document: doc}, nil
}
