// Package layout defines the on-disk structure of a memory directory and
// the process lock that guards it.
//
//	<root>/
//	  config.toml
//	  memory.lock
//	  vectors/      vector index
//	  docstore/     SQLite document store
//	  staging/      in-flight and write-ahead ingestion records
//	  prompts/      editable prompt templates
package layout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// Directory and file names inside a memory root.
const (
	VectorsDir   = "vectors"
	DocstoreDir  = "docstore"
	StagingDir   = "staging"
	PromptsDir   = "prompts"
	LockFile     = "memory.lock"
	ConfigFile   = "config.toml"
	DatabaseFile = "metadata.db"
)

// lockPollInterval is how often a blocked writer retries the lock.
const lockPollInterval = 100 * time.Millisecond

// Layout resolves paths inside a memory root.
type Layout struct {
	root string
}

// New returns the layout for root.
func New(root string) Layout {
	return Layout{root: root}
}

// Root returns the memory root.
func (l Layout) Root() string { return l.root }

// VectorsDir returns the vector index directory.
func (l Layout) VectorsDir() string { return filepath.Join(l.root, VectorsDir) }

// DocstoreDir returns the document store directory.
func (l Layout) DocstoreDir() string { return filepath.Join(l.root, DocstoreDir) }

// DatabasePath returns the SQLite database file.
func (l Layout) DatabasePath() string { return filepath.Join(l.root, DocstoreDir, DatabaseFile) }

// StagingDir returns the staging directory.
func (l Layout) StagingDir() string { return filepath.Join(l.root, StagingDir) }

// PromptsDir returns the prompt template directory.
func (l Layout) PromptsDir() string { return filepath.Join(l.root, PromptsDir) }

// LockPath returns the process lock file.
func (l Layout) LockPath() string { return filepath.Join(l.root, LockFile) }

// ConfigPath returns the TOML settings file.
func (l Layout) ConfigPath() string { return filepath.Join(l.root, ConfigFile) }

// Ensure creates the root and its subdirectories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.root, l.DocstoreDir(), l.StagingDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether root holds a memory, meaning it has at least one
// subdirectory.
func Exists(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}
	return false
}

// Lock is an exclusive inter-process lock on a memory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the memory's write lock, polling until timeout elapses.
// A zero timeout tries once. Returns domain.ErrMemoryLocked when another
// process keeps the lock.
func (l Layout) AcquireLock(ctx context.Context, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(l.root, 0700); err != nil {
		return nil, fmt.Errorf("create memory root: %w", err)
	}

	fl := flock.New(l.LockPath())
	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire memory lock: %w", err)
		}
		if locked {
			return &Lock{fl: fl}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w (lock: %s)", domain.ErrMemoryLocked, l.LockPath())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release unlocks the memory. Releasing twice is harmless.
func (k *Lock) Release() error {
	if k == nil || k.fl == nil {
		return nil
	}
	if err := k.fl.Unlock(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("release memory lock: %w", err)
	}
	return nil
}
