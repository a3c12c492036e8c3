package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a TOML file. Keys are held flat
// ("search.max_matches") and written back as nested tables.
type ConfigStore struct {
	mu   sync.RWMutex
	path string
	flat map[string]any
}

// NewConfigStore opens the TOML file at path, creating its directory.
// A missing or empty file starts an empty store.
func NewConfigStore(path string) (*ConfigStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	s := &ConfigStore{path: path, flat: map[string]any{}}
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flat[key]
	return v, ok
}

// Set stores the value and rewrites the file. On a write failure the
// in-memory value is rolled back.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.flat[key]
	s.flat[key] = value
	if err := s.write(); err != nil {
		if had {
			s.flat[key] = prev
		} else {
			delete(s.flat, key)
		}
		return err
	}
	return nil
}

func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.flat))
}

func (s *ConfigStore) Path() string {
	return s.path
}

func (s *ConfigStore) read() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(s.path), err)
	}
	s.flat = flatten(tree)
	return nil
}

// write replaces the file through a temp file in the same directory.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(nest(s.flat))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// flatten turns nested tables into dot-notation keys.
func flatten(tree map[string]any) map[string]any {
	out := map[string]any{}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			if prefix != "" {
				k = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(k, sub)
				continue
			}
			out[k] = v
		}
	}
	walk("", tree)
	return out
}

// nest is the inverse of flatten. Keys are applied in sorted order, so a
// plain value at "a" wins over any "a.*" key.
func nest(flat map[string]any) map[string]any {
	root := map[string]any{}
next:
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		path := strings.Split(key, ".")
		node := root
		for _, part := range path[:len(path)-1] {
			child, ok := node[part]
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			table, ok := child.(map[string]any)
			if !ok {
				continue next
			}
			node = table
		}
		node[path[len(path)-1]] = flat[key]
	}
	return root
}
