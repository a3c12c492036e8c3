package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Ensure StagingArea implements the interface.
var _ driven.StagingArea = (*StagingArea)(nil)

// StagingArea is an in-memory implementation of driven.StagingArea.
// Records do not survive the process.
type StagingArea struct {
	mu      sync.RWMutex
	records map[string]driven.StagedDocument
}

// NewStagingArea creates a new in-memory staging area.
func NewStagingArea() *StagingArea {
	return &StagingArea{records: make(map[string]driven.StagedDocument)}
}

// Write stores the record, replacing any previous one.
func (s *StagingArea) Write(ctx context.Context, staged *driven.StagedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *staged
	rec.Chunks = append([]domain.Chunk(nil), staged.Chunks...)
	s.records[staged.Document.ID] = rec
	return nil
}

// Read returns the record for a document, or domain.ErrNotFound.
func (s *StagingArea) Read(_ context.Context, documentID string) (*driven.StagedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.Chunks = append([]domain.Chunk(nil), rec.Chunks...)
	return &rec, nil
}

// Remove deletes the record.
func (s *StagingArea) Remove(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}

// List returns the document IDs with records, sorted.
func (s *StagingArea) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
