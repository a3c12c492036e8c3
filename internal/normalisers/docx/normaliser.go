// Package docx extracts paragraph text from Office Open XML documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

const (
	// MIMEType is the only content type this normaliser accepts.
	MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	bodyPart       = "word/document.xml"
	propertiesPart = "docProps/core.xml"
)

// Normaliser turns .docx archives into paragraph-separated text.
type Normaliser struct{}

// New returns a DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

func (n *Normaliser) Priority() int {
	return 50
}

// Normalise reads the main document part. A missing part yields empty content,
// an archive that cannot be opened is an invalid argument.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidArgument)
	}

	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a docx archive: %w", domain.ErrInvalidArgument, filepath.Base(raw.Path), err)
	}

	var content string
	body, err := readPart(archive, bodyPart)
	switch {
	case err == nil:
		content = paragraphs(body)
	case !errors.Is(err, errPartMissing):
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidArgument, filepath.Base(raw.Path), err)
	}

	title := coreTitle(archive)
	if title == "" {
		title = raw.TitleFromPath()
	}

	return &driven.NormaliseResult{
		Document: domain.Document{
			Path:     raw.Path,
			Title:    title,
			MIMEType: raw.MIMEType,
			Content:  content,
			Metadata: raw.NormalisedMetadata("docx"),
		},
	}, nil
}

var errPartMissing = errors.New("part missing")

func readPart(archive *zip.Reader, name string) ([]byte, error) {
	f, err := archive.Open(name)
	if err != nil {
		return nil, errPartMissing
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// paragraphs walks the WordprocessingML token stream. Only character data
// inside <w:t> counts as text; <w:tab> and <w:br> keep their layout meaning.
func paragraphs(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	flush := func() {
		if text := strings.TrimSpace(cur.String()); text != "" {
			out = append(out, text)
		}
		cur.Reset()
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	flush()

	return strings.Join(out, "\n\n")
}

// coreTitle returns dc:title from the package properties, or "".
func coreTitle(archive *zip.Reader) string {
	data, err := readPart(archive, propertiesPart)
	if err != nil {
		return ""
	}
	var props struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &props); err != nil {
		return ""
	}
	return strings.TrimSpace(props.Title)
}
