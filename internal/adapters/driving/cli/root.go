// Package cli implements the ragmem command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
)

// Access describes what a command needs from the memory.
type Access string

const (
	// AccessNone commands run without opening anything.
	AccessNone Access = ""
	// AccessSettings commands only need the settings service.
	AccessSettings Access = "settings"
	// AccessRead commands load the memory without taking the write lock.
	AccessRead Access = "read"
	// AccessWrite commands hold the write lock and replay interrupted commits.
	AccessWrite Access = "write"
)

const accessAnnotation = "ragmem.access"

// OpenOptions describes how the command wants the memory opened.
type OpenOptions struct {
	// Root overrides the memory directory when non-empty.
	Root string

	// Ephemeral keeps everything in process memory.
	Ephemeral bool

	Access Access

	// Configure adjusts the resolved settings before the memory is built.
	Configure func(*domain.AppSettings)
}

// Runtime is an opened memory plus its settings.
type Runtime struct {
	Memory   driving.MemoryService
	Settings driving.SettingsService

	// Close releases the memory and the lock. It may be nil.
	Close func() error
}

// Opener builds the runtime for a command.
type Opener func(ctx context.Context, opts OpenOptions) (*Runtime, error)

var (
	version = "dev"

	memoryRoot string
	verbose    bool
	ephemeral  bool

	memoryService   driving.MemoryService
	settingsService driving.SettingsService

	opener Opener
	opened *Runtime

	// configurers hold per-command settings overrides taken from flags.
	configurers = map[*cobra.Command]func(*domain.AppSettings){}

	// stdoutIsTerminal reports whether answers can be streamed live.
	stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

var rootCmd = &cobra.Command{
	Use:   "ragmem",
	Short: "Local question answering over your documents",
	Long: `ragmem imports local documents into a memory on disk and answers
questions from them with an embedding model and a text generator.

Examples:
  # Import a folder and ask a question
  ragmem import ./notes
  ragmem ask "When is the next release?"

  # Keep asking until an empty line
  ragmem chat`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&memoryRoot, "memory", "", "memory directory (default from storage.root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress and debug output")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the memory in process only")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetOpener sets the hook that opens the memory for commands that need it.
func SetOpener(o Opener) {
	opener = o
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetOut(os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, closeRuntime())
}

func withAccess(cmd *cobra.Command, access Access) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[accessAnnotation] = string(access)
	return cmd
}

func accessOf(cmd *cobra.Command) Access {
	for c := cmd; c != nil; c = c.Parent() {
		if a, ok := c.Annotations[accessAnnotation]; ok {
			return Access(a)
		}
	}
	return AccessNone
}

// prepare applies global flags and opens the memory the command asks for.
// Services injected before execution are used as they are.
func prepare(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	access := accessOf(cmd)
	switch access {
	case AccessNone:
		return nil
	case AccessSettings:
		if settingsService != nil {
			return nil
		}
	default:
		if memoryService != nil {
			return nil
		}
	}
	if opener == nil {
		return errors.New("memory not configured")
	}

	rt, err := opener(cmd.Context(), OpenOptions{
		Root:      memoryRoot,
		Ephemeral: ephemeral,
		Access:    access,
		Configure: configurers[cmd],
	})
	if err != nil {
		return err
	}
	opened = rt
	memoryService = rt.Memory
	settingsService = rt.Settings
	return nil
}

func closeRuntime() error {
	if opened == nil {
		return nil
	}
	rt := opened
	opened = nil
	memoryService = nil
	settingsService = nil
	if rt.Close == nil {
		return nil
	}
	if err := rt.Close(); err != nil {
		return fmt.Errorf("close memory: %w", err)
	}
	return nil
}

func requireMemory() error {
	if memoryService == nil {
		return errors.New("memory not configured")
	}
	return nil
}
