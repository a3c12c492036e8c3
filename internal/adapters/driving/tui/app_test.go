package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

var testDocs = []domain.Document{
	{ID: "0123456789abcdef", Title: "Operations Guide", Path: "/docs/ops.md", Status: domain.StatusIndexed, ChunkCount: 2},
}

func newTestPorts() *Ports {
	return &Ports{
		Query: &MockQueryService{},
		Document: &MockDocumentService{
			ListFunc: func(context.Context) ([]domain.Document, error) { return testDocs, nil },
			GetFunc: func(_ context.Context, id string) (*domain.Document, error) {
				if id == testDocs[0].ID {
					doc := testDocs[0]
					return &doc, nil
				}
				return nil, domain.ErrNotFound
			},
			GetChunksFunc: func(context.Context, string) ([]domain.Chunk, error) {
				return []domain.Chunk{{ID: "0123456789abcdef-0", Kind: domain.ChunkKindText, Content: "Restart the worker."}}, nil
			},
			GetContentFunc: func(context.Context, string) (string, error) {
				return "Restart the worker before upgrading.", nil
			},
		},
	}
}

func newTestApp(t *testing.T, ports *Ports) *App {
	t.Helper()
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(100, 40)
	return app
}

func send(app *App, msg tea.Msg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

func typeText(app *App, text string) {
	for _, r := range text {
		send(app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func esc() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyEsc} }

func TestNewApp(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
	assert.Nil(t, app.settingsView)
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{Document: &MockDocumentService{}})

	require.ErrorIs(t, err, ErrMissingQueryService)
	assert.Nil(t, app)
}

func TestApp_InitAndResize(t *testing.T) {
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)

	assert.NotNil(t, app.Init())

	send(app, tea.WindowSizeMsg{Width: 120, Height: 30})
	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "ragmem")
}

func TestApp_MenuSelectsView(t *testing.T) {
	app := newTestApp(t, newTestPorts())

	cmd := send(app, enter())
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, messages.ViewChanged{View: messages.ViewAsk}, msg)

	send(app, msg)
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
	assert.Contains(t, app.View(), "Question")
}

func TestApp_SearchAndOpenResult(t *testing.T) {
	ports := newTestPorts()
	var gotLimit int
	ports.Query = &MockQueryService{
		SearchFunc: func(_ context.Context, q string, limit int) ([]domain.SearchResult, error) {
			gotLimit = limit
			return []domain.SearchResult{{Document: testDocs[0], Score: 0.91, Chunk: domain.Chunk{Content: "Restart the worker."}}}, nil
		},
	}
	app := newTestApp(t, ports)

	send(app, messages.ViewChanged{View: messages.ViewSearch})
	typeText(app, "restart")
	cmd := send(app, enter())
	require.NotNil(t, cmd)
	send(app, cmd())

	assert.Equal(t, 10, gotLimit)
	assert.Contains(t, app.View(), "Operations Guide")

	cmd = send(app, enter())
	require.NotNil(t, cmd)
	cmd = send(app, cmd())
	require.Equal(t, messages.ViewDocContent, app.CurrentView())
	require.NotNil(t, cmd)
	send(app, cmd())

	assert.Equal(t, testDocs[0].ID, app.SelectedDocument().ID)
	assert.Contains(t, app.View(), "Restart the worker before upgrading.")

	cmd = send(app, esc())
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewSearch}, cmd())
}

func TestApp_SearchError(t *testing.T) {
	ports := newTestPorts()
	ports.Query = &MockQueryService{
		SearchFunc: func(context.Context, string, int) ([]domain.SearchResult, error) {
			return nil, errors.New("vector index missing")
		},
	}
	app := newTestApp(t, ports)

	send(app, messages.ViewChanged{View: messages.ViewSearch})
	typeText(app, "anything")
	send(app, send(app, enter())())

	require.EqualError(t, app.Err(), "vector index missing")
	assert.Contains(t, app.View(), "vector index missing")
}

func TestApp_AskStreamsWhileHidden(t *testing.T) {
	ports := newTestPorts()
	stream := &MockAnswerStream{
		Text: "Restart the worker first.",
		Refs: []domain.Source{{DocumentID: testDocs[0].ID, Path: "/docs/ops.md", Title: "Operations Guide"}},
	}
	ports.Query = &MockQueryService{
		AskStreamFunc: func(context.Context, string) (driving.AnswerStream, error) { return stream, nil },
	}
	app := newTestApp(t, ports)

	send(app, messages.ViewChanged{View: messages.ViewAsk})
	typeText(app, "how do I upgrade?")
	started := send(app, enter())()

	// Leave for the menu before the answer arrives.
	send(app, messages.ViewChanged{View: messages.ViewMenu})
	pull := send(app, started)
	fragment := pull()
	complete := send(app, fragment)
	send(app, complete())

	assert.True(t, stream.Closed)
	send(app, messages.ViewChanged{View: messages.ViewAsk})
	out := app.View()
	assert.Contains(t, out, "Restart the worker first.")
	assert.Contains(t, out, "Source: Operations Guide")
}

func TestApp_DocumentsAndDetails(t *testing.T) {
	app := newTestApp(t, newTestPorts())

	cmd := send(app, messages.ViewChanged{View: messages.ViewDocuments})
	require.NotNil(t, cmd)
	send(app, cmd())
	assert.Contains(t, app.View(), "Operations Guide")

	send(app, enter())                       // open actions
	send(app, tea.KeyMsg{Type: tea.KeyDown}) // show details
	cmd = send(app, enter())
	require.NotNil(t, cmd)
	send(app, cmd())

	require.Equal(t, messages.ViewDocDetails, app.CurrentView())
	out := app.View()
	assert.Contains(t, out, "/docs/ops.md")
	assert.Contains(t, out, "Restart the worker.")

	cmd = send(app, esc())
	require.NotNil(t, cmd)
	send(app, cmd())
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
}

func TestApp_DetailsErrorStaysOnDocuments(t *testing.T) {
	app := newTestApp(t, newTestPorts())
	send(app, send(app, messages.ViewChanged{View: messages.ViewDocuments})())

	send(app, messages.DocumentDetailsLoaded{Err: domain.ErrNotFound})

	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
	assert.ErrorIs(t, app.Err(), domain.ErrNotFound)
	assert.Contains(t, app.View(), "Error:")
}

func TestApp_DocumentOpenedFromListReturnsToList(t *testing.T) {
	app := newTestApp(t, newTestPorts())
	send(app, send(app, messages.ViewChanged{View: messages.ViewDocuments})())

	send(app, enter())
	cmd := send(app, enter())
	require.NotNil(t, cmd)
	send(app, cmd())

	cmd = send(app, esc())
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewDocuments}, cmd())
}

func TestApp_Settings(t *testing.T) {
	t.Run("hidden without a settings service", func(t *testing.T) {
		app := newTestApp(t, newTestPorts())

		cmd := send(app, messages.ViewChanged{View: messages.ViewSettings})

		assert.Nil(t, cmd)
		assert.Equal(t, messages.ViewMenu, app.CurrentView())
		assert.NotContains(t, app.View(), "Settings")
	})

	t.Run("shown with a settings service", func(t *testing.T) {
		ports := newTestPorts()
		ports.Settings = &MockSettingsService{}
		app := newTestApp(t, ports)
		assert.Contains(t, app.View(), "Settings")

		cmd := send(app, messages.ViewChanged{View: messages.ViewSettings})
		require.NotNil(t, cmd)
		send(app, cmd())

		assert.Equal(t, messages.ViewSettings, app.CurrentView())
		assert.Contains(t, app.View(), "Embedding Provider")
	})
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t, newTestPorts())

	send(app, messages.ViewChanged{View: messages.ViewHelp})
	view := app.View()
	assert.Contains(t, view, "new question")
	assert.Contains(t, view, "Documents")

	send(app, esc())
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, newTestPorts())

	cmd := send(app, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	cmd = send(app, messages.Quit{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_WithContext(t *testing.T) {
	type ctxKey struct{}
	ports := newTestPorts()
	var got any
	ports.Query = &MockQueryService{
		SearchFunc: func(ctx context.Context, _ string, _ int) ([]domain.SearchResult, error) {
			got = ctx.Value(ctxKey{})
			return nil, nil
		},
	}
	app := newTestApp(t, ports)
	assert.Same(t, app, app.WithContext(context.WithValue(context.Background(), ctxKey{}, "tui")))

	send(app, messages.ViewChanged{View: messages.ViewSearch})
	typeText(app, "q")
	send(app, send(app, enter())())

	assert.Equal(t, "tui", got)
}
