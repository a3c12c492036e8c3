// Package staging stores ingestion staging records as JSON files.
// It implements the driven.StagingArea interface.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Ensure Area implements the interface.
var _ driven.StagingArea = (*Area)(nil)

const ext = ".json"

// Area keeps one file per document: <dir>/<documentID>.json.
type Area struct {
	dir string
}

// New creates a staging area rooted at dir, creating it if needed.
func New(dir string) (*Area, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", dir, err)
	}
	return &Area{dir: dir}, nil
}

// Write durably stores the record. The file is written to a temporary name,
// fsynced and renamed, so a reader sees either the old or the new record.
func (a *Area) Write(ctx context.Context, staged *driven.StagedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := staged.Document.ID
	if !validID(id) {
		return fmt.Errorf("%w: staging: invalid document ID %q", domain.ErrInvalidArgument, id)
	}

	data, err := json.Marshal(record{
		Document: staged.Document,
		Content:  staged.Document.Content,
		Chunks:   staged.Chunks,
		Commit:   staged.Commit,
	})
	if err != nil {
		return fmt.Errorf("staging: encode %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(a.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("staging: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("staging: write %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("staging: sync %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("staging: close %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), a.path(id)); err != nil {
		return fmt.Errorf("staging: install %s: %w", id, err)
	}
	return syncDir(a.dir)
}

// Read returns the record for a document, or domain.ErrNotFound.
func (a *Area) Read(_ context.Context, documentID string) (*driven.StagedDocument, error) {
	if !validID(documentID) {
		return nil, domain.ErrNotFound
	}
	data, err := os.ReadFile(a.path(documentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("staging: read %s: %w", documentID, err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: staging record %s: %v", domain.ErrStorageCorruption, documentID, err)
	}
	r.Document.Content = r.Content
	return &driven.StagedDocument{Document: r.Document, Chunks: r.Chunks, Commit: r.Commit}, nil
}

// Remove deletes the record. Removing a missing record is not an error.
func (a *Area) Remove(_ context.Context, documentID string) error {
	if !validID(documentID) {
		return nil
	}
	if err := os.Remove(a.path(documentID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("staging: remove %s: %w", documentID, err)
	}
	return nil
}

// List returns the document IDs with records, sorted.
func (a *Area) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("staging: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *Area) path(documentID string) string {
	return filepath.Join(a.dir, documentID+ext)
}

// record is the file format. Document.Content is excluded from the
// document's JSON form, so it is carried separately.
type record struct {
	Document domain.Document `json:"document"`
	Content  string          `json:"content"`
	Chunks   []domain.Chunk  `json:"chunks"`
	Commit   bool            `json:"commit"`
}

// validID rejects IDs that could escape the staging directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("staging: open dir: %w", err)
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
