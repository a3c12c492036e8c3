// Package list renders ranked search hits as a scrollable list.
package list

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// rowHeight is the number of lines one hit takes: heading, path and excerpt.
const rowHeight = 3

// chrome is the number of lines taken by the header and surrounding padding.
const chrome = 4

// ResultList keeps the selected hit in view as it moves.
type ResultList struct {
	styles *styles.Styles
	keymap *keymap.KeyMap

	hits   []domain.SearchResult
	cursor int
	offset int

	width  int
	height int
}

// New returns an empty list. Nil styles or keymap fall back to the defaults.
func New(s *styles.Styles, km *keymap.KeyMap) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &ResultList{styles: s, keymap: km, width: 80, height: 10}
}

func (r *ResultList) Init() tea.Cmd { return nil }

// Update moves the cursor on Up and Down key presses.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	switch {
	case key.Matches(km, r.keymap.Up):
		r.MoveUp()
	case key.Matches(km, r.keymap.Down):
		r.MoveDown()
	}
	return r, nil
}

func (r *ResultList) rows() int {
	return max((r.height-chrome)/rowHeight, 1)
}

// follow scrolls the window just enough to contain the cursor.
func (r *ResultList) follow() {
	rows := r.rows()
	if r.cursor < r.offset {
		r.offset = r.cursor
	}
	if r.cursor >= r.offset+rows {
		r.offset = r.cursor - rows + 1
	}
	r.offset = max(min(r.offset, len(r.hits)-rows), 0)
}

func (r *ResultList) View() string {
	if len(r.hits) == 0 {
		return r.styles.Muted.Render("No results")
	}

	r.follow()
	end := min(r.offset+r.rows(), len(r.hits))

	out := []string{r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.hits))), ""}
	for i := r.offset; i < end; i++ {
		out = append(out, r.row(i))
	}
	if end < len(r.hits) {
		out = append(out, r.styles.Muted.Render(fmt.Sprintf("  %d more below", len(r.hits)-end)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func (r *ResultList) row(i int) string {
	hit := &r.hits[i]
	st := r.styles

	title := hit.Document.Title
	if title == "" {
		title = domain.ShortID(hit.Document.ID)
	}
	titleWidth := max(r.width-20, 10)
	heading := fmt.Sprintf("%-*s  %.2f", titleWidth, truncate(title, titleWidth), hit.Score)

	if i == r.cursor {
		heading = st.Selected.Render("> " + heading)
	} else {
		heading = st.Normal.Render("  " + heading)
	}

	width := max(r.width-6, 20)
	excerpt := strings.Join(strings.Fields(hit.Chunk.Content), " ")
	return lipgloss.JoinVertical(lipgloss.Left,
		heading,
		st.Source.Render("    "+truncate(hit.Document.Path, width)),
		st.Muted.Render("    "+truncate(excerpt, width)),
	)
}

// truncate cuts s to n runes, the last being an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n < 1 {
		return ""
	}
	return string(runes[:n-1]) + "…"
}

// SetResults replaces the hits and moves the cursor to the top.
func (r *ResultList) SetResults(hits []domain.SearchResult) {
	r.hits = hits
	r.cursor, r.offset = 0, 0
}

func (r *ResultList) Results() []domain.SearchResult { return r.hits }

// Selected returns the cursor position.
func (r *ResultList) Selected() int { return r.cursor }

// SetSelected moves the cursor to i if it is in range.
func (r *ResultList) SetSelected(i int) {
	if i >= 0 && i < len(r.hits) {
		r.cursor = i
	}
}

// SelectedResult returns the hit under the cursor, or nil for an empty list.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.cursor >= len(r.hits) {
		return nil
	}
	return &r.hits[r.cursor]
}

func (r *ResultList) MoveUp() {
	r.cursor = max(r.cursor-1, 0)
}

func (r *ResultList) MoveDown() {
	r.cursor = max(min(r.cursor+1, len(r.hits)-1), 0)
}

// SetDimensions sets the space the list may render into.
func (r *ResultList) SetDimensions(width, height int) {
	r.width, r.height = width, height
}

func (r *ResultList) Count() int { return len(r.hits) }

func (r *ResultList) IsEmpty() bool { return len(r.hits) == 0 }
