// Package menu is the TUI start screen.
package menu

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
)

// Item is one entry. Selecting it, or pressing Shortcut, opens View
// unless Quit is set.
type Item struct {
	Label    string
	Hint     string
	Shortcut key.Binding
	View     messages.ViewType
	Quit     bool
}

func item(label, shortcut, hint string, view messages.ViewType) Item {
	return Item{
		Label:    label,
		Hint:     hint,
		Shortcut: key.NewBinding(key.WithKeys(shortcut), key.WithHelp(shortcut, label)),
		View:     view,
	}
}

type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	items  []Item
	cursor int

	width, height int
	ready         bool
}

// NewView lists the screens. Settings appears only when withSettings is set.
func NewView(s *styles.Styles, km *keymap.KeyMap, withSettings bool) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	items := []Item{
		item("Ask", "a", "answer a question from your documents", messages.ViewAsk),
		item("Search", "s", "find the most similar passages", messages.ViewSearch),
		item("Documents", "d", "browse and remove imported documents", messages.ViewDocuments),
	}
	if withSettings {
		items = append(items, item("Settings", ",", "choose AI providers", messages.ViewSettings))
	}
	items = append(items,
		item("Help", "?", "", messages.ViewHelp),
		Item{Label: "Quit", Shortcut: km.Quit, Quit: true},
	)

	return &View{
		styles: s,
		keymap: km,
		help:   styles.HelpModel(s),
		items:  items,
		width:  80,
		height: 24,
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
		case key.Matches(msg, v.keymap.Up):
			v.cursor = max(v.cursor-1, 0)
		case key.Matches(msg, v.keymap.Down):
			v.cursor = min(v.cursor+1, len(v.items)-1)
		case key.Matches(msg, v.keymap.Select):
			return v, v.open(v.items[v.cursor])
		default:
			for i, it := range v.items {
				if key.Matches(msg, it.Shortcut) {
					v.cursor = i
					return v, v.open(it)
				}
			}
		}
	}
	return v, nil
}

func (v *View) open(it Item) tea.Cmd {
	if it.Quit {
		return tea.Quit
	}
	return messages.Goto(it.View)
}

func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}
	st := v.styles

	rows := []string{st.Title.Render("ragmem"), "", st.Muted.Render("Ask your documents"), ""}
	for i, it := range v.items {
		if i != v.cursor {
			rows = append(rows, "  "+st.Normal.Render(it.Label))
			continue
		}
		row := st.Selected.Render("> " + it.Label)
		if it.Hint != "" {
			row += st.Muted.Render("  " + it.Hint)
		}
		rows = append(rows, row)
	}

	shortcuts := make([]key.Binding, 0, len(v.items)+2)
	shortcuts = append(shortcuts, v.keymap.Up, v.keymap.Down)
	for _, it := range v.items {
		shortcuts = append(shortcuts, it.Shortcut)
	}
	rows = append(rows, "", v.help.ShortHelpView(shortcuts))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.help.Width = width
}

// Selected returns the cursor index.
func (v *View) Selected() int {
	return v.cursor
}

func (v *View) Items() []Item {
	return v.items
}
