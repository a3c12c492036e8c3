package vectorfs

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/logger"
)

// File names inside the index directory.
const (
	ManifestFile = "index_manifest.json"
	EntriesFile  = "entries.jsonl"
	VectorsFile  = "vectors.f32"

	formatVersion = 1
)

// manifest describes a persisted index.
type manifest struct {
	Version   int       `json:"version"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	NextSeq   uint64    `json:"next_seq"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Persist writes the current snapshot to the index directory.
//
// Files are written to a sibling staging directory which then replaces the
// live directory: live is renamed to .bak, staging is renamed to live, and
// .bak is removed. Load completes an interrupted swap.
func (idx *Index) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Hold the writer lock so the persisted snapshot is the latest one.
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s := idx.snap.Load()
	staging := idx.dir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("vectorfs: clear staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0700); err != nil {
		return fmt.Errorf("vectorfs: create staging: %w", err)
	}

	if err := writeSnapshot(staging, s, idx.model); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	if err := swap(idx.dir, staging); err != nil {
		return err
	}
	logger.Debug("vectorfs: persisted %d entries to %s", len(s.entries), idx.dir)
	return nil
}

// Load replaces the in-memory state with the persisted index.
// A missing or empty directory yields an empty index.
func (idx *Index) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := recoverSwap(idx.dir); err != nil {
		return err
	}

	s, m, err := readSnapshot(idx.dir)
	if err != nil {
		return err
	}
	if m != nil && idx.model != "" && m.Model != "" && m.Model != idx.model {
		logger.Warn("vector index was built with model %q but %q is configured; run reindex", m.Model, idx.model)
	}

	idx.snap.Store(s)
	return nil
}

func writeSnapshot(dir string, s *snapshot, model string) error {
	m := manifest{
		Version:   formatVersion,
		Dimension: s.dims,
		Count:     len(s.entries),
		NextSeq:   s.nextSeq,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}

	if err := writeFile(filepath.Join(dir, EntriesFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		for _, e := range s.entries {
			if err := enc.Encode(e.IndexEntry); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("vectorfs: write entries: %w", err)
	}

	if err := writeFile(filepath.Join(dir, VectorsFile), func(w *bufio.Writer) error {
		buf := make([]byte, 4)
		for _, e := range s.entries {
			for _, x := range e.Embedding {
				binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
				if _, err := w.Write(buf); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("vectorfs: write vectors: %w", err)
	}

	// The manifest goes last: a directory without one is treated as empty.
	if err := writeFile(filepath.Join(dir, ManifestFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return fmt.Errorf("vectorfs: write manifest: %w", err)
	}
	return syncDir(dir)
}

// writeFile creates path, fills it through a buffered writer and fsyncs it.
func writeFile(path string, fill func(*bufio.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readSnapshot(dir string) (*snapshot, *manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return emptySnapshot, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("vectorfs: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, corrupt("manifest is not valid JSON: %v", err)
	}
	if m.Version != formatVersion {
		return nil, nil, corrupt("unsupported index version %d", m.Version)
	}
	if m.Count < 0 || m.Dimension < 0 || (m.Count > 0 && m.Dimension == 0) {
		return nil, nil, corrupt("manifest has count %d and dimension %d", m.Count, m.Dimension)
	}

	entries, err := readEntries(filepath.Join(dir, EntriesFile))
	if err != nil {
		return nil, nil, err
	}
	if len(entries) != m.Count {
		return nil, nil, corrupt("manifest lists %d entries, entries file has %d", m.Count, len(entries))
	}

	vf, err := os.Open(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, nil, corrupt("open vectors: %v", err)
	}
	defer vf.Close()

	info, err := vf.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("vectorfs: stat vectors: %w", err)
	}
	want := int64(m.Count) * int64(m.Dimension) * 4
	if info.Size() != want {
		return nil, nil, corrupt("vectors file is %d bytes, expected %d", info.Size(), want)
	}

	s := &snapshot{
		entries: make([]entry, len(entries)),
		byChunk: make(map[string]int, len(entries)),
		dims:    m.Dimension,
		nextSeq: m.NextSeq,
	}
	r := bufio.NewReader(vf)
	buf := make([]byte, 4)
	for i, e := range entries {
		vec := make([]float32, m.Dimension)
		for j := range vec {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, nil, corrupt("read vector %d: %v", i, err)
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		e.Embedding = vec
		if _, dup := s.byChunk[e.ChunkID]; dup {
			return nil, nil, corrupt("duplicate chunk %s", e.ChunkID)
		}
		if e.Seq >= s.nextSeq {
			s.nextSeq = e.Seq + 1
		}
		s.entries[i] = entry{IndexEntry: e, norm: norm(vec)}
		s.byChunk[e.ChunkID] = i
	}
	if len(s.entries) == 0 {
		s.dims = 0
	}
	return s, &m, nil
}

func readEntries(path string) ([]domain.IndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, corrupt("open entries: %v", err)
	}
	defer f.Close()

	var entries []domain.IndexEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e domain.IndexEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, corrupt("entries line %d: %v", line, err)
		}
		if e.ChunkID == "" {
			return nil, corrupt("entries line %d has no chunk ID", line)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, corrupt("read entries: %v", err)
	}
	return entries, nil
}

// swap replaces dir with staging.
func swap(dir, staging string) error {
	backup := dir + ".bak"
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("vectorfs: clear backup: %w", err)
	}

	hadLive := true
	if err := os.Rename(dir, backup); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("vectorfs: back up index: %w", err)
		}
		hadLive = false
	}
	if err := os.Rename(staging, dir); err != nil {
		if hadLive {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("vectorfs: install index: %w", err)
	}
	if err := syncDir(filepath.Dir(dir)); err != nil {
		return fmt.Errorf("vectorfs: sync parent: %w", err)
	}
	if hadLive {
		if err := os.RemoveAll(backup); err != nil {
			logger.Warn("vectorfs: remove backup %s: %v", backup, err)
		}
	}
	return nil
}

// recoverSwap finishes or rolls back a swap interrupted by a crash.
func recoverSwap(dir string) error {
	backup := dir + ".bak"
	staging := dir + ".staging"

	_, liveErr := os.Stat(dir)
	_, bakErr := os.Stat(backup)

	switch {
	case errors.Is(liveErr, os.ErrNotExist) && bakErr == nil:
		// Crashed between the two renames: the backup is the last good index.
		logger.Warn("vectorfs: restoring index from %s", backup)
		if err := os.Rename(backup, dir); err != nil {
			return fmt.Errorf("vectorfs: restore backup: %w", err)
		}
	case liveErr == nil && bakErr == nil:
		// Crashed after installing the new index.
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("vectorfs: remove backup: %w", err)
		}
	}

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("vectorfs: remove staging: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems reject fsync on directories.
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		logger.Debug("vectorfs: sync %s: %v", dir, err)
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: vector index: %s", domain.ErrStorageCorruption, fmt.Sprintf(format, args...))
}
