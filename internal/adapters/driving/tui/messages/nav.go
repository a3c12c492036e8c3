// Package messages holds the tea.Msg values the TUI views exchange.
package messages

import tea "github.com/charmbracelet/bubbletea"

// ViewType names a screen of the TUI.
type ViewType int

const (
	ViewMenu ViewType = iota
	ViewAsk
	ViewSearch
	ViewHelp
	ViewDocuments
	ViewDocContent // one document's stored text
	ViewDocDetails // metadata and chunk list
	ViewSettings
)

var viewNames = [...]string{
	ViewMenu:       "menu",
	ViewAsk:        "ask",
	ViewSearch:     "search",
	ViewHelp:       "help",
	ViewDocuments:  "documents",
	ViewDocContent: "doc_content",
	ViewDocDetails: "doc_details",
	ViewSettings:   "settings",
}

func (v ViewType) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "unknown"
	}
	return viewNames[v]
}

// ViewChanged asks the app to switch screens.
type ViewChanged struct {
	View ViewType
}

// Goto returns a command that switches to view.
func Goto(view ViewType) tea.Cmd {
	return func() tea.Msg { return ViewChanged{View: view} }
}

// ErrorOccurred reports a failure the active view should display.
type ErrorOccurred struct {
	Err error
}

// Fail returns a command reporting err.
func Fail(err error) tea.Cmd {
	return func() tea.Msg { return ErrorOccurred{Err: err} }
}

// Quit ends the program.
type Quit struct{}
