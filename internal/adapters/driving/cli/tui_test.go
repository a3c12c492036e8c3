package cli

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui"
)

func stubProgram(t *testing.T, err error) *[]tea.Model {
	t.Helper()
	var models []tea.Model
	original := runProgram
	runProgram = func(m tea.Model, _ ...tea.ProgramOption) error {
		models = append(models, m)
		return err
	}
	t.Cleanup(func() { runProgram = original })
	return &models
}

func TestTUI_RunsApp(t *testing.T) {
	models := stubProgram(t, nil)

	_, err := execute(t, &MockMemoryService{}, &MockSettingsService{}, "", "tui")
	require.NoError(t, err)

	require.Len(t, *models, 1)
	app, ok := (*models)[0].(*tui.App)
	require.True(t, ok)
	assert.Nil(t, app.Err())
}

func TestTUI_ProgramError(t *testing.T) {
	stubProgram(t, errors.New("no tty"))

	_, err := execute(t, &MockMemoryService{}, nil, "", "tui")

	require.EqualError(t, err, "TUI error: no tty")
}

func TestTUI_RecoversPanic(t *testing.T) {
	original := runProgram
	runProgram = func(tea.Model, ...tea.ProgramOption) error { panic("boom") }
	t.Cleanup(func() { runProgram = original })

	_, err := execute(t, &MockMemoryService{}, nil, "", "tui")

	require.EqualError(t, err, "TUI panic: boom")
}

func TestTUI_RequiresMemory(t *testing.T) {
	require.EqualError(t, runWithoutMemory(t, "tui"), "memory not configured")
}
