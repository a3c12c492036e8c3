// Package doccontent shows the normalised text of one document in a
// scrollable pane.
package doccontent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// ErrNoDocumentService is reported when content is requested without a service.
var ErrNoDocumentService = errors.New("document service not available")

// chrome is the number of lines around the text pane: title, rule, footer.
const chrome = 6

var (
	keyTop    = key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top"))
	keyBottom = key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom"))
	keyBack   = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))
)

type View struct {
	styles *styles.Styles
	svc    driving.DocumentService
	ctx    context.Context
	pane   viewport.Model

	doc      *domain.Document
	returnTo messages.ViewType
	content  string
	lines    []string
	loading  bool
	err      error

	width, height int
}

func NewView(s *styles.Styles, svc driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	v := &View{
		styles:   s,
		svc:      svc,
		ctx:      context.Background(),
		returnTo: messages.ViewDocuments,
	}
	v.pane = viewport.New(0, 0)
	v.pane.KeyMap.PageDown.SetKeys("pgdown", " ", "f", "ctrl+d")
	v.pane.KeyMap.PageUp.SetKeys("pgup", "b", "ctrl+u")
	v.pane.KeyMap.HalfPageDown.SetEnabled(false)
	v.pane.KeyMap.HalfPageUp.SetEnabled(false)
	v.SetDimensions(80, 24)
	return v
}

// WithContext sets the context content is loaded under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetDocument clears the pane and returns the command that loads doc's
// text. Esc then goes back to returnTo.
func (v *View) SetDocument(doc *domain.Document, returnTo messages.ViewType) tea.Cmd {
	v.doc, v.returnTo = doc, returnTo
	v.content, v.lines, v.err = "", nil, nil
	v.loading = true
	v.pane.SetContent("")
	v.pane.GotoTop()

	ctx, svc, id := v.ctx, v.svc, doc.ID
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentContentLoaded{DocumentID: id, Err: ErrNoDocumentService}
		}
		content, err := svc.GetContent(ctx, id)
		return messages.DocumentContentLoaded{DocumentID: id, Content: content, Err: err}
	}
}

func (v *View) Init() tea.Cmd {
	return nil
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyBack):
			return v, messages.Goto(v.returnTo)
		case key.Matches(msg, keyTop):
			v.pane.GotoTop()
		case key.Matches(msg, keyBottom):
			v.pane.GotoBottom()
		default:
			var cmd tea.Cmd
			v.pane, cmd = v.pane.Update(msg)
			return v, cmd
		}

	case messages.DocumentContentLoaded:
		if v.doc == nil || msg.DocumentID != v.doc.ID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.content = msg.Content
			v.reflow()
		}

	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

// reflow wraps the text to the pane width, breaking words only when a
// single word is wider than the pane.
func (v *View) reflow() {
	v.lines = nil
	if v.content != "" {
		wrapped := lipgloss.NewStyle().Width(v.pane.Width).Render(v.content)
		for line := range strings.SplitSeq(wrapped, "\n") {
			v.lines = append(v.lines, strings.TrimRight(line, " "))
		}
	}
	offset := v.pane.YOffset
	v.pane.SetContent(strings.Join(v.lines, "\n"))
	v.pane.SetYOffset(offset)
}

func (v *View) View() string {
	st := v.styles

	title := "Document Content"
	if v.doc != nil {
		title = v.doc.Title
		if title == "" {
			title = v.doc.Path
		}
	}
	parts := []string{st.Title.Render(title), strings.Repeat("─", max(min(v.width-4, 60), 0)), ""}

	switch {
	case v.loading:
		parts = append(parts, st.Muted.Render("Loading content..."))
	case v.err != nil:
		parts = append(parts, st.Error.Render("Error: "+v.err.Error()))
	case len(v.lines) == 0:
		parts = append(parts, st.Muted.Render("(No content)"))
	default:
		parts = append(parts, st.Normal.Render(v.pane.View()))
		if total := v.pane.TotalLineCount(); total > v.pane.Height {
			first := v.pane.YOffset + 1
			last := min(v.pane.YOffset+v.pane.Height, total)
			parts = append(parts, "", st.Muted.Render(fmt.Sprintf("  [%.0f%%] Line %d-%d of %d",
				v.pane.ScrollPercent()*100, first, last, total)))
		}
	}

	parts = append(parts, "", st.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetDimensions resizes the pane and rewraps the text.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.pane.Width = max(width-4, 20)
	v.pane.Height = max(height-chrome, 1)
	v.reflow()
}

func (v *View) Document() *domain.Document { return v.doc }

func (v *View) Content() string { return v.content }

func (v *View) Err() error { return v.err }
