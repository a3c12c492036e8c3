// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// ErrNoQueryService indicates that no query service was provided.
var ErrNoQueryService = errors.New("query service is required")

// View asks one question at a time and renders the answer as it streams in.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.TextInput
	statusbar *status.Bar

	queryService driving.QueryService
	ctx          context.Context

	// session increments per question; messages from older sessions are dropped.
	session   int
	stream    driving.AnswerStream
	next      func() (string, error, bool)
	stop      func()
	abandoned map[int]func()

	question  string
	text      strings.Builder
	sources   []domain.Source
	answer    *domain.Answer
	answering bool
	stopped   bool
	err       error

	width  int
	height int
	ready  bool
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:       s,
		keymap:       km,
		input:        input.New(s, "Question", "Ask something about your documents..."),
		statusbar:    status.New(s, km),
		queryService: queryService,
		ctx:          context.Background(),
		abandoned:    make(map[int]func()),
		width:        80,
		height:       24,
	}
}

// WithContext sets the context questions are answered under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerStarted:
		return v.handleStarted(msg)

	case messages.AnswerFragment:
		if msg.Session != v.session || v.next == nil {
			v.release(msg.Session)
			return v, nil
		}
		if !v.stopped {
			v.text.WriteString(msg.Text)
		}
		return v, v.pull()

	case messages.AnswerCompleted:
		if msg.Session != v.session {
			v.release(msg.Session)
			return v, nil
		}
		v.finish(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		if v.answering {
			v.stopped = true
			if v.stream != nil {
				v.stream.Close()
			}
			v.statusbar.Note("Stopping...")
			return v, nil
		}
		return v, messages.Goto(messages.ViewMenu)
	}

	if v.answering {
		return v, nil
	}

	if v.input.Focused() {
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(v.input.Value())
			if question == "" {
				return v, nil
			}
			return v, v.submit(question)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	if key.Matches(msg, v.keymap.New) {
		v.input.SetValue("")
		return v, v.input.Focus()
	}
	return v, nil
}

// submit starts answering a question in a new session.
func (v *View) submit(question string) tea.Cmd {
	v.session++
	session := v.session
	v.question = question
	v.text.Reset()
	v.sources = nil
	v.answer = nil
	v.err = nil
	v.stopped = false
	v.answering = true
	v.input.Blur()
	v.statusbar.Busy("Writing answer...")

	ctx := v.ctx
	svc := v.queryService
	return func() tea.Msg {
		if svc == nil {
			return messages.AnswerStarted{Session: session, Err: ErrNoQueryService}
		}
		stream, err := svc.AskStream(ctx, question)
		return messages.AnswerStarted{Session: session, Stream: stream, Err: err}
	}
}

func (v *View) handleStarted(msg messages.AnswerStarted) (*View, tea.Cmd) {
	if msg.Session != v.session {
		if msg.Stream != nil {
			msg.Stream.Close()
		}
		return v, nil
	}
	if msg.Err != nil {
		v.answering = false
		v.setError(msg.Err)
		return v, nil
	}

	v.stream = msg.Stream
	v.sources = msg.Stream.Sources()
	if v.stopped {
		v.stream.Close()
	}
	v.next, v.stop = iter.Pull2(msg.Stream.Fragments())
	return v, v.pull()
}

// pull reads the next fragment. Only one pull is outstanding at a time.
func (v *View) pull() tea.Cmd {
	session := v.session
	next := v.next
	stream := v.stream
	return func() tea.Msg {
		text, err, ok := next()
		switch {
		case !ok:
			return messages.AnswerCompleted{Session: session, Answer: stream.Answer()}
		case err != nil:
			return messages.AnswerCompleted{Session: session, Err: err}
		default:
			return messages.AnswerFragment{Session: session, Text: text}
		}
	}
}

func (v *View) finish(msg messages.AnswerCompleted) {
	if v.stop != nil {
		v.stop()
	}
	if v.stream != nil {
		v.stream.Close()
	}
	v.next, v.stop, v.stream = nil, nil, nil
	v.answering = false

	switch {
	case v.stopped:
		v.statusbar.Ready("Answer stopped")
	case msg.Err != nil:
		v.setError(msg.Err)
	default:
		v.answer = msg.Answer
		v.sources = msg.Answer.Sources
		v.statusbar.Answered(msg.Answer.Elapsed)
	}
}

// release stops the iterator of an abandoned session.
func (v *View) release(session int) {
	if stop, ok := v.abandoned[session]; ok {
		stop()
		delete(v.abandoned, session)
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.Failed(err)
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("Ask"), "", v.input.View(), "")

	if v.question != "" {
		sections = append(sections, v.styles.Subtitle.Render("Question: ")+v.styles.Normal.Render(v.question), "")

		text := v.Text()
		if text != "" {
			width := max(v.width-4, 20)
			sections = append(sections, v.styles.Answer.Width(width).Render(text), "")
		}
		for _, s := range v.sources {
			sections = append(sections, v.styles.Source.Render("Source: "+s.SourceName()))
		}
	}

	if v.err != nil {
		sections = append(sections, "", v.styles.Error.Render("Error: "+v.err.Error()))
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Reset abandons any answer in progress and clears the view.
func (v *View) Reset() {
	if v.stream != nil {
		v.stream.Close()
	}
	// A pull may still be running; its iterator is stopped once it reports back.
	if v.stop != nil {
		v.abandoned[v.session] = v.stop
	}
	v.session++
	v.stream, v.next, v.stop = nil, nil, nil
	v.question = ""
	v.text.Reset()
	v.sources = nil
	v.answer = nil
	v.answering = false
	v.stopped = false
	v.err = nil
	v.input.SetValue("")
	v.input.Focus()
	v.statusbar.Reset()
}

// Question returns the question being answered.
func (v *View) Question() string {
	return v.question
}

// Text returns the answer text received so far.
func (v *View) Text() string {
	if v.answer != nil {
		return v.answer.Text
	}
	return strings.TrimSpace(v.text.String())
}

// Sources returns the sources of the current answer.
func (v *View) Sources() []domain.Source {
	return v.sources
}

// Answer returns the completed answer, or nil while one is being written.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// Answering reports whether an answer is being written.
func (v *View) Answering() bool {
	return v.answering
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// SetQuestion fills the input without submitting it.
func (v *View) SetQuestion(q string) {
	v.input.SetValue(q)
}
