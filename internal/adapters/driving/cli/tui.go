package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui"
)

// runProgram runs the bubbletea program. Tests replace it.
var runProgram = func(m tea.Model, opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

var tuiCmd = withAccess(&cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for ragmem.

The TUI asks questions, runs similarity searches and lets you browse
and remove imported documents with keyboard navigation.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Ask / Search / Select
  Esc      - Back, or stop an answer
  q        - Quit from the menu`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}, AccessWrite)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	if err := requireMemory(); err != nil {
		return err
	}

	app, err := tui.NewApp(tui.PortsFor(memoryService, settingsService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	if err := runProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
