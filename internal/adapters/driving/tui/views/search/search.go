// Package search is the TUI view for similarity search over stored chunks.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// DefaultLimit is how many hits a search asks for.
const DefaultLimit = 10

// listChrome is the height taken by everything except the result list.
const listChrome = 10

// ErrNoQueryService is reported when a search is submitted without a service.
var ErrNoQueryService = errors.New("query service is required")

// View alternates between typing a query and browsing its hits.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.TextInput
	list      *list.ResultList
	statusbar *status.Bar

	svc   driving.QueryService
	ctx   context.Context
	limit int

	// session numbers searches; results of an older search are dropped.
	session int
	typing  bool
	err     error

	width, height int
	ready         bool
}

func NewView(s *styles.Styles, km *keymap.KeyMap, svc driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		input:     input.New(s, "Search", "Enter search query..."),
		list:      list.New(s, km),
		statusbar: status.New(s, km),
		svc:       svc,
		ctx:       context.Background(),
		limit:     DefaultLimit,
		typing:    true,
		width:     80,
		height:    24,
	}
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithLimit changes how many hits are requested. Values below one are ignored.
func (v *View) WithLimit(n int) *View {
	if n > 0 {
		v.limit = n
	}
	return v
}

func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil
	case tea.KeyMsg:
		return v, v.onKey(msg)
	case messages.SearchCompleted:
		v.onCompleted(msg)
		return v, nil
	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) onKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, v.keymap.Back) {
		return messages.Goto(messages.ViewMenu)
	}

	if v.typing {
		if key.Matches(msg, v.keymap.Submit) {
			return v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, v.keymap.Open):
		if hit := v.list.SelectedResult(); hit != nil {
			doc := hit.Document
			return func() tea.Msg { return messages.DocumentSelected{Document: doc} }
		}
	case key.Matches(msg, v.keymap.New):
		v.typing = true
		v.input.SetValue("")
		return v.input.Focus()
	default:
		v.list.Update(msg)
	}
	return nil
}

func (v *View) submit() tea.Cmd {
	query := strings.TrimSpace(v.input.Value())
	if query == "" {
		return nil
	}

	v.session++
	v.typing = false
	v.input.Blur()
	v.statusbar.Busy("Searching...")

	if v.svc == nil {
		return messages.Fail(ErrNoQueryService)
	}
	ctx, svc, limit, session := v.ctx, v.svc, v.limit, v.session
	return func() tea.Msg {
		hits, err := svc.Search(ctx, query, limit)
		return messages.SearchCompleted{Session: session, Results: hits, Err: err}
	}
}

func (v *View) onCompleted(msg messages.SearchCompleted) {
	if msg.Session != v.session {
		return
	}
	if msg.Err != nil {
		v.fail(msg.Err)
		return
	}
	v.err = nil
	v.typing = false
	v.input.Blur()
	v.list.SetResults(msg.Results)
	v.statusbar.Results(len(msg.Results))
}

func (v *View) fail(err error) {
	v.err = err
	v.statusbar.Failed(err)
}

func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	parts := []string{v.styles.Title.Render("Search"), "", v.input.View(), ""}
	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	parts = append(parts, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-listChrome)
	v.statusbar.SetWidth(width)
}

// Reset abandons any search in flight and focuses an empty input.
func (v *View) Reset() {
	v.session++
	v.typing = true
	v.err = nil
	v.input.SetValue("")
	v.input.Focus()
	v.list.SetResults(nil)
	v.statusbar.Reset()
}

func (v *View) Query() string { return v.input.Value() }

func (v *View) SetQuery(q string) { v.input.SetValue(q) }

func (v *View) Results() []domain.SearchResult { return v.list.Results() }

func (v *View) SelectedIndex() int { return v.list.Selected() }

func (v *View) Err() error { return v.err }

// InputFocused reports whether keys go to the query input.
func (v *View) InputFocused() bool { return v.typing }
