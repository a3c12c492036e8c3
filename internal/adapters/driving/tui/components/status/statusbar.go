// Package status renders the one-line bar under the search and ask views.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
)

type phase int

const (
	phaseIdle phase = iota
	phaseBusy
	phaseResults
	phaseAnswered
	phaseFailed
)

// Bar shows what the view is doing on the left and key hints on the right.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	phase   phase
	text    string
	count   int
	elapsed time.Duration
	width   int
}

// New returns an idle bar. Nil styles or keymap fall back to the defaults.
func New(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{
		styles: s,
		keymap: km,
		help:   styles.HelpModel(s),
		width:  80,
	}
}

// Busy shows label until the next phase change.
func (b *Bar) Busy(label string) {
	b.phase, b.text = phaseBusy, label
}

// Ready returns to idle, optionally with a note such as "Answer stopped".
func (b *Bar) Ready(note string) {
	b.phase, b.text = phaseIdle, note
}

// Results reports a finished search.
func (b *Bar) Results(n int) {
	b.phase, b.count, b.text = phaseResults, n, ""
}

// Answered reports a finished answer and how long it took.
func (b *Bar) Answered(elapsed time.Duration) {
	b.phase, b.elapsed, b.text = phaseAnswered, elapsed, ""
}

// Failed shows err until the next phase change.
func (b *Bar) Failed(err error) {
	b.phase, b.text = phaseFailed, ""
	if err != nil {
		b.text = err.Error()
	}
}

// Note replaces the text without changing the phase.
func (b *Bar) Note(text string) {
	b.text = text
}

// Reset clears everything back to idle.
func (b *Bar) Reset() {
	b.phase, b.text, b.count, b.elapsed = phaseIdle, "", 0, 0
}

// IsBusy reports whether work is in progress.
func (b *Bar) IsBusy() bool {
	return b.phase == phaseBusy
}

// SetWidth sets the rendered width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// View renders the bar at its width.
func (b *Bar) View() string {
	left, right := b.status(), b.hints()
	gap := max(b.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) status() string {
	st := b.styles
	switch b.phase {
	case phaseBusy:
		return st.Muted.Render("… " + b.text)
	case phaseFailed:
		if b.text == "" {
			return st.Error.Render("Error")
		}
		return st.Error.Render("Error: " + b.text)
	case phaseAnswered:
		return st.Normal.Render("Answer generated in " + b.elapsed.Round(time.Millisecond).String())
	case phaseResults:
		switch b.count {
		case 0:
			return st.Muted.Render("No results")
		case 1:
			return st.Normal.Render("1 result")
		}
		return st.Normal.Render(fmt.Sprintf("%d results", b.count))
	}
	if b.text != "" {
		return st.Normal.Render(b.text)
	}
	return st.Muted.Render("Ready")
}

func (b *Bar) hints() string {
	if b.phase == phaseAnswered || (b.phase == phaseResults && b.count > 0) {
		return b.help.ShortHelpView(b.keymap.ResultsHelp())
	}
	return b.help.ShortHelpView(b.keymap.ShortHelp())
}
