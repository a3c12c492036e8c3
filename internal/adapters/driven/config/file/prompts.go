package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults/*.txt
var defaults embed.FS

const promptExt = ".txt"

// DefaultPrompts returns the built-in templates keyed by prompt name.
func DefaultPrompts() map[string]string {
	entries, _ := fs.ReadDir(defaults, "defaults")
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := fs.ReadFile(defaults, path.Join("defaults", e.Name()))
		if err != nil {
			continue
		}
		out[strings.TrimSuffix(e.Name(), promptExt)] = clean(data)
	}
	return out
}

type cachedPrompt struct {
	text string
	mod  time.Time
	size int64
}

// PromptStore serves <dir>/<name>.txt, writing the built-in template for any
// prompt whose file is missing the first time a prompt is loaded. A file
// edited on disk is picked up by the next Load.
type PromptStore struct {
	dir      string
	defaults map[string]string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

// NewPromptStore does no I/O.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: prompt directory is empty", domain.ErrInvalidArgument)
	}
	return &PromptStore{
		dir:      dir,
		defaults: DefaultPrompts(),
		cache:    make(map[string]cachedPrompt),
	}, nil
}

func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the named template. When the directory cannot be prepared or
// the file is gone, a built-in template of that name is used instead.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	fallback, builtin := s.defaults[name]
	if s.seedErr != nil {
		if builtin {
			return fallback, nil
		}
		return "", s.seedErr
	}

	text, err := s.read(name)
	switch {
	case err == nil:
		return text, nil
	case builtin:
		return fallback, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	default:
		return "", fmt.Errorf("prompt %q: %w", name, err)
	}
}

// Reload drops every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *PromptStore) file(name string) string {
	return filepath.Join(s.dir, name+promptExt)
}

// read returns the cached text while the file's size and mtime are unchanged.
func (s *PromptStore) read(name string) (string, error) {
	p := s.file(name)
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[name]; ok && c.mod.Equal(info.ModTime()) && c.size == info.Size() {
		return c.text, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	text := clean(data)
	s.cache[name] = cachedPrompt{text: text, mod: info.ModTime(), size: info.Size()}
	return text, nil
}

func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	for name, text := range s.defaults {
		f, err := os.OpenFile(s.file(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err == nil {
			_, err = f.WriteString(text)
			err = errors.Join(err, f.Close())
		}
		if err != nil {
			s.seedErr = fmt.Errorf("write default prompt %q: %w", name, err)
			return
		}
	}
}

// clean drops leading whitespace and trailing newlines. A trailing space is
// kept so "Answer: " still ends in one.
func clean(data []byte) string {
	return strings.TrimLeft(strings.TrimRight(string(data), "\r\n"), " \t\r\n")
}
