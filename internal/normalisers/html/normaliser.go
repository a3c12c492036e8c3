package html

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority ranks above the plaintext fallback.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts an HTML document to plain text.
// Block elements become paragraph breaks so the partitioner sees the
// document's structure.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidArgument)
	}

	title, text := extract(strings.NewReader(string(raw.Content)))
	if title == "" {
		title = raw.TitleFromPath()
	}

	return &driven.NormaliseResult{
		Document: domain.Document{
			Path:     raw.Path,
			Title:    title,
			MIMEType: raw.MIMEType,
			Content:  text,
			Metadata: raw.NormalisedMetadata("html"),
		},
	}, nil
}

// hidden elements contribute no text.
var hidden = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"template": true,
	"iframe":   true,
}

// block elements start and end a paragraph.
var block = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

// extract walks the token stream once, returning the <title> text and the
// readable body text.
func extract(r io.Reader) (title, text string) {
	z := html.NewTokenizer(r)

	var (
		out     strings.Builder
		heading strings.Builder
		skip    int
		inHead  bool
		inTitle bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapse(heading.String()), tidy(out.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = tt == html.StartTagToken
			case tag == "head":
				inHead = tt == html.StartTagToken
			case tag == "body":
				inHead = false
			case hidden[tag]:
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "br":
				out.WriteByte('\n')
			case block[tag]:
				out.WriteString("\n\n")
			case tag == "td" || tag == "th":
				out.WriteByte(' ')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = false
			case tag == "head":
				inHead = false
			case hidden[tag]:
				if skip > 0 {
					skip--
				}
			case block[tag]:
				out.WriteString("\n\n")
			}

		case html.TextToken:
			switch {
			case inTitle:
				heading.Write(z.Text())
			case skip > 0 || inHead:
			default:
				writeCollapsed(&out, string(z.Text()))
			}
		}
	}
}

// writeCollapsed folds whitespace runs in s to single spaces.
func writeCollapsed(b *strings.Builder, s string) {
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tidy trims each line and keeps at most one blank line between paragraphs.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	gap := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			gap = len(kept) > 0
			continue
		}
		if gap {
			kept = append(kept, "")
			gap = false
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
