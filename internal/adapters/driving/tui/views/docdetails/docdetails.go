// Package docdetails provides the document details view component for the TUI.
package docdetails

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// View shows a document's metadata followed by its chunks.
type View struct {
	styles *styles.Styles

	document     *domain.Document
	chunks       []domain.Chunk
	scrollOffset int
	width        int
	height       int
	err          error
}

// NewView creates a new document details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, width: 80, height: 24}
}

// SetDetails sets the document and chunks to display.
func (v *View) SetDetails(doc *domain.Document, chunks []domain.Chunk) {
	v.document = doc
	v.chunks = chunks
	v.scrollOffset = 0
	v.err = nil
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the document details view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "esc":
		return v, messages.Goto(messages.ViewDocuments)
	}
	return v, nil
}

func (v *View) visibleLines() int {
	// title, separator, footer and padding
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.buildContent())-v.visibleLines(), 0)
}

// buildContent lays out the fields, metadata and chunk list as lines.
func (v *View) buildContent() []string {
	if v.document == nil {
		return nil
	}
	d := v.document

	lines := []string{
		formatField("ID", d.ID),
		formatField("Title", d.Title),
		formatField("Path", d.Path),
		formatField("Type", d.MIMEType),
		formatField("Status", string(d.Status)),
	}
	if d.Status == domain.StatusFailed {
		lines = append(lines, formatField("Failure",
			fmt.Sprintf("%s after %d attempt(s): %s", d.FailedStep, d.Attempts, d.FailureReason)))
	}
	lines = append(lines, formatField("Chunks", fmt.Sprintf("%d", d.ChunkCount)))
	if !d.CreatedAt.IsZero() {
		lines = append(lines, formatField("Created", d.CreatedAt.Format(timeLayout)))
	}
	if !d.UpdatedAt.IsZero() {
		lines = append(lines, formatField("Updated", d.UpdatedAt.Format(timeLayout)))
	}

	if len(d.Metadata) > 0 {
		lines = append(lines, "", "Metadata:")
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := fmt.Sprint(d.Metadata[k])
			if len(value) > 50 {
				value = value[:47] + "..."
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", k, value))
		}
	}

	if len(v.chunks) > 0 {
		lines = append(lines, "", "Chunks:")
		snippetLen := max(v.width-30, 20)
		for _, c := range v.chunks {
			snippet := strings.Join(strings.Fields(c.Content), " ")
			if len([]rune(snippet)) > snippetLen {
				snippet = string([]rune(snippet)[:snippetLen-3]) + "..."
			}
			lines = append(lines, fmt.Sprintf("  [%d] %s, %d tokens: %s", c.Position, c.Kind, c.TokenCount, snippet))
		}
	}

	return lines
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

// View renders the document details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Document Details"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(v.width-4, 60)))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.document == nil:
		b.WriteString(v.styles.Muted.Render("No document details available"))
	default:
		v.renderContent(&b)
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] scroll  [esc] back"))
	return b.String()
}

func (v *View) renderContent(b *strings.Builder) {
	lines := v.buildContent()
	visible := v.visibleLines()
	end := min(v.scrollOffset+visible, len(lines))

	for _, line := range lines[v.scrollOffset:end] {
		switch {
		case line == "Metadata:" || line == "Chunks:":
			b.WriteString(v.styles.Subtitle.Render(line))
		case strings.HasPrefix(line, "  "):
			b.WriteString(v.styles.Muted.Render(line))
		default:
			if label, value, ok := strings.Cut(line, ":"); ok {
				b.WriteString(v.styles.Subtitle.Render(label + ":"))
				b.WriteString(v.styles.Normal.Render(value))
			} else {
				b.WriteString(v.styles.Normal.Render(line))
			}
		}
		b.WriteString("\n")
	}

	if len(lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]", v.scrollOffset+1, end, len(lines))))
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Document returns the displayed document.
func (v *View) Document() *domain.Document {
	return v.document
}

// Chunks returns the displayed chunks.
func (v *View) Chunks() []domain.Chunk {
	return v.chunks
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
