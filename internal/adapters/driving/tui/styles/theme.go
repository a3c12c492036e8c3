// Package styles holds the TUI palette and the lipgloss styles built on it.
package styles

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette. Each colour adapts to light and dark terminals.
type Theme struct {
	Accent  lipgloss.AdaptiveColor
	Accent2 lipgloss.AdaptiveColor
	Text    lipgloss.AdaptiveColor
	Dim     lipgloss.AdaptiveColor
	Surface lipgloss.AdaptiveColor
	Good    lipgloss.AdaptiveColor
	Caution lipgloss.AdaptiveColor
	Bad     lipgloss.AdaptiveColor
	Rule    lipgloss.AdaptiveColor
}

func adaptive(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// DefaultTheme is teal and amber on the terminal background.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:  adaptive("#1F7A6E", "#2E9E8F"),
		Accent2: adaptive("#A86A1C", "#E0A458"),
		Text:    adaptive("#1B1D23", "#D8DEE9"),
		Dim:     adaptive("#6B7280", "#7B8394"),
		Surface: adaptive("#E5E7EB", "#15171C"),
		Good:    adaptive("#3F7D20", "#8FBC6A"),
		Caution: adaptive("#9A6700", "#EBCB8B"),
		Bad:     adaptive("#B42318", "#D9636C"),
		Rule:    adaptive("#C9CED6", "#3B4252"),
	}
}

// Styles are the named styles the views render with.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style

	// Selected highlights the focused list row.
	Selected lipgloss.Style

	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	// Answer and Source render generated text and its citations.
	Answer lipgloss.Style
	Source lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles derives the styles from theme, or the default theme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	rounded := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Rule)

	return &Styles{
		theme:      theme,
		Title:      fg(theme.Accent).Bold(true),
		Subtitle:   fg(theme.Accent2).Bold(true),
		Normal:     fg(theme.Text),
		Muted:      fg(theme.Dim),
		Selected:   fg(theme.Surface).Background(theme.Accent).Bold(true),
		Error:      fg(theme.Bad),
		Success:    fg(theme.Good),
		Warning:    fg(theme.Caution),
		Answer:     fg(theme.Text).PaddingLeft(2),
		Source:     fg(theme.Accent2).Italic(true),
		InputField: rounded.Padding(0, 1),
		StatusBar:  fg(theme.Dim).Background(theme.Surface).Padding(0, 1),
		Help:       fg(theme.Dim),
		Border:     rounded,
	}
}

// DefaultStyles is NewStyles(DefaultTheme()).
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette behind s.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// HelpModel returns a key help renderer coloured to match s.
func HelpModel(s *Styles) help.Model {
	h := help.New()
	h.Styles.ShortKey = s.Subtitle.UnsetBold()
	h.Styles.ShortDesc = s.Muted
	h.Styles.ShortSeparator = s.Muted
	h.Styles.FullKey = s.Subtitle.UnsetBold()
	h.Styles.FullDesc = s.Normal
	h.Styles.FullSeparator = s.Muted
	h.ShortSeparator = " | "
	return h
}
