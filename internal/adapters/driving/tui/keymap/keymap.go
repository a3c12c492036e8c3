// Package keymap holds the TUI key bindings and the help text built from them.
package keymap

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

var _ help.KeyMap = (*KeyMap)(nil)

// KeyMap is the set of bindings shared by the views.
type KeyMap struct {
	Quit key.Binding
	Help key.Binding

	// Back returns to the previous view, or stops an answer being written.
	Back key.Binding

	Submit key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// New clears the input for another question or query.
	New key.Binding

	// Open shows the document behind the selected result.
	Open key.Binding

	Delete key.Binding
	Reload key.Binding
}

func bind(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() *KeyMap {
	km := &KeyMap{
		Quit:   bind("quit", "q", "ctrl+c"),
		Help:   bind("help", "?"),
		Back:   bind("back", "esc"),
		Submit: bind("submit", "enter"),
		Up:     bind("up", "up", "k"),
		Down:   bind("down", "down", "j"),
		Select: bind("select", "enter"),
		New:    bind("new", "n"),
		Open:   bind("open", "enter"),
		Delete: bind("delete", "d"),
		Reload: bind("reload", "r"),
	}
	km.Up.SetHelp("↑/k", "up")
	km.Down.SetHelp("↓/j", "down")
	return km
}

// ShortHelp is shown while an input has focus.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Back}
}

// ResultsHelp is shown while results or an answer are on screen.
func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.New, k.Up, k.Open, k.Back}
}

// FullHelp returns one column per help section.
func (k *KeyMap) FullHelp() [][]key.Binding {
	sections := k.Sections()
	cols := make([][]key.Binding, len(sections))
	for i, s := range sections {
		cols[i] = s.Bindings
	}
	return cols
}

// Section is a titled group on the help screen.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Sections describes the bindings per view, with view-specific wording.
func (k *KeyMap) Sections() []Section {
	return []Section{
		{"Navigation", []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Quit}},
		{"Ask", []key.Binding{
			relabel(k.Submit, "ask"),
			relabel(k.Back, "stop the answer, or back"),
			relabel(k.New, "new question"),
		}},
		{"Search", []key.Binding{
			relabel(k.Submit, "search"),
			relabel(k.Open, "open the selected result"),
			relabel(k.New, "new search"),
		}},
		{"Documents", []key.Binding{
			relabel(k.Select, "actions"),
			k.Delete,
			k.Reload,
		}},
	}
}

// relabel copies b with a different description.
func relabel(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
