// Package documents lists stored documents and the actions on them.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// ErrNoDocumentService is reported when the view has no document service.
var ErrNoDocumentService = errors.New("document service not available")

// Action is an entry of the per-document action menu.
type Action int

const (
	ActionShowContent Action = iota
	ActionShowDetails
	ActionDelete
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionShowContent:
		return "Show Content"
	case ActionShowDetails:
		return "Show Details"
	case ActionDelete:
		return "Delete"
	default:
		return "Cancel"
	}
}

// chrome is the height taken by the title, notice and footer.
const chrome = 8

type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	svc    driving.DocumentService
	ctx    context.Context
	table  table.Model

	docs    []domain.Document
	loading bool
	notice  string
	err     error

	// menuOpen shows the action menu for the selected document.
	menuOpen bool
	action   Action
	// armed is set after the first enter on Delete; a second one deletes.
	armed bool

	width, height int
}

func NewView(s *styles.Styles, km *keymap.KeyMap, svc driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	ts := table.DefaultStyles()
	ts.Header = s.Subtitle.Padding(0, 1)
	ts.Cell = s.Normal.Padding(0, 1)
	ts.Selected = s.Selected

	t := table.New(table.WithFocused(true), table.WithStyles(ts))
	t.KeyMap.HalfPageDown.SetEnabled(false)
	t.KeyMap.HalfPageUp.SetEnabled(false)

	v := &View{styles: s, keymap: km, svc: svc, ctx: context.Background(), table: t}
	v.SetDimensions(80, 24)
	return v
}

// WithContext sets the context service calls run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd {
	return nil
}

// Load resets the view and returns the command that lists the documents.
func (v *View) Load() tea.Cmd {
	v.table.SetCursor(0)
	v.err, v.notice = nil, ""
	v.menuOpen, v.armed = false, false
	return v.list()
}

func (v *View) list() tea.Cmd {
	v.loading = true
	ctx, svc := v.ctx, v.svc
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: ErrNoDocumentService}
		}
		docs, err := svc.List(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		if v.menuOpen {
			return v, v.onMenuKey(msg)
		}
		return v, v.onKey(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.setDocuments(msg.Documents)
		}

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Document %s deleted.", domain.ShortID(msg.DocumentID))
		return v, v.list()

	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) setDocuments(docs []domain.Document) {
	v.docs = docs
	rows := make([]table.Row, 0, len(docs))
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = domain.ShortID(d.ID)
		}
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{title, string(d.Status), strconv.Itoa(d.ChunkCount), updated, d.Path})
	}
	cursor := v.table.Cursor()
	v.table.SetRows(rows)
	v.table.SetCursor(max(min(cursor, len(rows)-1), 0))
}

func (v *View) onKey(msg tea.KeyMsg) tea.Cmd {
	km := v.keymap
	switch {
	case key.Matches(msg, km.Back):
		return messages.Goto(messages.ViewMenu)
	case key.Matches(msg, km.Reload):
		v.notice = ""
		return v.list()
	case key.Matches(msg, km.Select):
		v.openMenu(ActionShowContent)
	case key.Matches(msg, km.Delete):
		v.openMenu(ActionDelete)
	default:
		var cmd tea.Cmd
		v.table, cmd = v.table.Update(msg)
		return cmd
	}
	return nil
}

func (v *View) openMenu(at Action) {
	if len(v.docs) == 0 {
		return
	}
	v.menuOpen, v.action, v.armed = true, at, false
}

func (v *View) onMenuKey(msg tea.KeyMsg) tea.Cmd {
	km := v.keymap
	switch {
	case key.Matches(msg, km.Up):
		v.action, v.armed = max(v.action-1, ActionShowContent), false
	case key.Matches(msg, km.Down):
		v.action, v.armed = min(v.action+1, ActionCancel), false
	case key.Matches(msg, km.Back):
		v.menuOpen, v.armed = false, false
	case key.Matches(msg, km.Select):
		return v.run()
	}
	return nil
}

func (v *View) run() tea.Cmd {
	doc := v.SelectedDocument()
	if doc == nil || v.action == ActionCancel {
		v.menuOpen = false
		return nil
	}
	if v.action == ActionDelete && !v.armed {
		v.armed = true
		return nil
	}
	v.menuOpen, v.armed = false, false

	selected := *doc
	ctx, svc := v.ctx, v.svc
	switch v.action {
	case ActionShowContent:
		return func() tea.Msg { return messages.DocumentSelected{Document: selected} }
	case ActionShowDetails:
		return func() tea.Msg { return details(ctx, svc, selected.ID) }
	default:
		return func() tea.Msg {
			if svc == nil {
				return messages.DocumentDeleted{DocumentID: selected.ID, Err: ErrNoDocumentService}
			}
			return messages.DocumentDeleted{DocumentID: selected.ID, Err: svc.Delete(ctx, selected.ID)}
		}
	}
}

func details(ctx context.Context, svc driving.DocumentService, id string) messages.DocumentDetailsLoaded {
	if svc == nil {
		return messages.DocumentDetailsLoaded{Err: ErrNoDocumentService}
	}
	doc, err := svc.Get(ctx, id)
	if err != nil {
		return messages.DocumentDetailsLoaded{Err: err}
	}
	chunks, err := svc.GetChunks(ctx, id)
	return messages.DocumentDetailsLoaded{Document: doc, Chunks: chunks, Err: err}
}

func (v *View) View() string {
	st := v.styles
	parts := []string{st.Title.Render(fmt.Sprintf("Documents (%d)", len(v.docs))), ""}

	switch {
	case v.loading:
		parts = append(parts, st.Muted.Render("Loading documents..."))
	case v.err != nil:
		parts = append(parts, st.Error.Render("Error: "+v.err.Error()))
	case len(v.docs) == 0:
		parts = append(parts, st.Muted.Render("No documents imported yet. Run 'ragmem import <path>' to add some."))
	case v.menuOpen:
		return lipgloss.JoinVertical(lipgloss.Left, append(parts, v.menuView())...)
	default:
		parts = append(parts, v.table.View())
	}

	if v.notice != "" {
		parts = append(parts, "", st.Success.Render(v.notice))
	}
	parts = append(parts, "", st.Help.Render("[↑/↓] navigate  [enter] actions  [d] delete  [r] reload  [esc] back"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *View) menuView() string {
	st := v.styles
	var rows []string
	if doc := v.SelectedDocument(); doc != nil {
		title := doc.Title
		if title == "" {
			title = doc.Path
		}
		rows = append(rows, st.Subtitle.Render("Actions for: "+title), "")
	}
	for a := ActionShowContent; a <= ActionCancel; a++ {
		label := a.String()
		if a == ActionDelete && v.armed {
			label = "Delete (press enter again to confirm)"
		}
		if a == v.action {
			rows = append(rows, st.Selected.Render("> "+label))
		} else {
			rows = append(rows, st.Normal.Render("  "+label))
		}
	}
	rows = append(rows, "", st.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// SetDimensions sizes the table columns to width. Path takes what the
// fixed columns leave.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height

	title := max(width/3, 12)
	const status, chunks, updated = 9, 7, 17
	path := max(width-title-status-chunks-updated-10, 10)
	v.table.SetColumns([]table.Column{
		{Title: "Title", Width: title},
		{Title: "Status", Width: status},
		{Title: "Chunks", Width: chunks},
		{Title: "Updated", Width: updated},
		{Title: "Path", Width: path},
	})
	v.table.SetWidth(width)
	v.table.SetHeight(max(height-chrome, 2))
}

func (v *View) Documents() []domain.Document {
	return v.docs
}

// SelectedIndex returns the row under the cursor.
func (v *View) SelectedIndex() int {
	return v.table.Cursor()
}

// SelectedDocument returns the document under the cursor, or nil.
func (v *View) SelectedDocument() *domain.Document {
	i := v.table.Cursor()
	if i < 0 || i >= len(v.docs) {
		return nil
	}
	return &v.docs[i]
}

func (v *View) IsShowingMenu() bool {
	return v.menuOpen
}

func (v *View) Err() error {
	return v.err
}
