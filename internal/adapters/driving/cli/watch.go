package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/logger"
)

var (
	watchDebounce time.Duration
	watchInitial  bool
)

var watchCmd = withAccess(&cobra.Command{
	Use:   "watch <dir>",
	Short: "Import files as they change",
	Long: `Watches a directory tree and imports files when they are created or
written. Bursts of events are collected until the tree has been quiet for
the debounce interval. Hidden files and directories are ignored.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}, AccessWrite)

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before importing")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "import existing files before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}
	ctx := cmd.Context()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, root); err != nil {
		return err
	}

	if watchInitial {
		set, err := expandPaths([]string{root})
		if err != nil {
			return err
		}
		importBatch(cmd, set.paths)
	}
	cmd.Printf("Watching %s\n", root)

	pending := make(map[string]bool)
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isVisibleDir(event.Name) {
				if err := watchTree(watcher, event.Name); err != nil {
					logger.Warn("watch %s: %v", event.Name, err)
				}
				continue
			}
			if path, ok := changedFile(event); ok {
				pending[path] = true
				flush = time.After(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)

		case <-flush:
			flush = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			importBatch(cmd, paths)
		}
	}
}

// importBatch imports files found by walking or watching. Failures are
// printed and do not stop the watch.
func importBatch(cmd *cobra.Command, paths []string) {
	if len(paths) == 0 {
		return
	}
	walked := make(map[string]bool, len(paths))
	for _, p := range paths {
		walked[p] = true
	}

	reports, err := memoryService.ImportDocuments(cmd.Context(), paths, nil)
	if err != nil && cmd.Context().Err() == nil {
		logger.Error("import: %v", err)
	}
	printImportReports(cmd, reports, walked)
}

// watchTree adds dir and its visible subdirectories to the watcher.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// changedFile reports the path of a visible regular file that was created or written.
func changedFile(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

func isVisibleDir(path string) bool {
	if isHidden(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
