package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages documents already in the memory.
type DocumentService struct {
	docStore    driven.DocumentStore
	jobStore    driven.JobStore
	staging     driven.StagingArea
	vectorIndex driven.VectorIndex
	ingest      *IngestService
}

// NewDocumentService creates a new document service. Writes take the
// locks of ingest so they never interleave with an import.
func NewDocumentService(
	docStore driven.DocumentStore,
	jobStore driven.JobStore,
	staging driven.StagingArea,
	vectorIndex driven.VectorIndex,
	ingest *IngestService,
) *DocumentService {
	return &DocumentService{
		docStore:    docStore,
		jobStore:    jobStore,
		staging:     staging,
		vectorIndex: vectorIndex,
		ingest:      ingest,
	}
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by full ID or by a unique ID prefix.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: document id is empty", domain.ErrInvalidArgument)
	}

	doc, err := s.docStore.GetDocument(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var matches []domain.Document
	for _, d := range docs {
		if strings.HasPrefix(d.ID, id) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: id prefix %q matches %d documents", domain.ErrInvalidArgument, id, len(matches))
	}
}

// GetChunks returns the stored chunks of a document in order.
func (s *DocumentService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks, err := s.docStore.GetChunks(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(chunks, func(a, b domain.Chunk) int { return a.Position - b.Position })
	return chunks, nil
}

// GetContent rebuilds the extracted text from the document's text chunks.
// Overlapping spans are written once.
func (s *DocumentService) GetContent(ctx context.Context, id string) (string, error) {
	chunks, err := s.GetChunks(ctx, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	end := -1
	for _, c := range chunks {
		if c.Kind != domain.ChunkKindText {
			continue
		}
		switch {
		case end < 0:
			b.WriteString(c.Content)
		case c.StartOffset < end && c.EndOffset > end && end-c.StartOffset <= len(c.Content):
			b.WriteString(c.Content[end-c.StartOffset:])
		case c.StartOffset >= end:
			b.WriteString("\n")
			b.WriteString(c.Content)
		default:
			continue
		}
		end = c.EndOffset
	}
	return b.String(), nil
}

// Delete removes a document, its chunks, its index entries, its jobs and
// its staging record.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.ingest.exclusive(doc.ID, func() error {
		if err := s.vectorIndex.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete index entries: %w", err)
		}
		if err := s.vectorIndex.Persist(ctx); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
		if err := s.docStore.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if err := s.jobStore.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		if err := s.staging.Remove(ctx, doc.ID); err != nil {
			return fmt.Errorf("remove staging record: %w", err)
		}
		metrics.IndexEntries.Set(float64(s.vectorIndex.Count()))
		logger.Info("Deleted %s (%s)", doc.Path, domain.ShortID(doc.ID))
		return nil
	})
}

// Check compares the vector index with the document store. Every indexed
// document must have one entry per stored chunk, and every entry must
// belong to an indexed document.
func (s *DocumentService) Check(ctx context.Context) (*domain.CheckReport, error) {
	defer logger.Timer("consistency check")()

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	counts := s.vectorIndex.DocumentCounts()

	report := &domain.CheckReport{
		Documents:    len(docs),
		IndexEntries: s.vectorIndex.Count(),
	}
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.ID] = true
		entries := counts[d.ID]

		if d.Status != domain.StatusIndexed {
			if entries > 0 {
				report.Problems = append(report.Problems,
					fmt.Sprintf("%s (%s) is %s but has %d index entries", d.Path, domain.ShortID(d.ID), d.Status, entries))
			}
			continue
		}

		chunks, err := s.docStore.GetChunks(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("chunks of %s: %w", domain.ShortID(d.ID), err)
		}
		report.IndexedChunks += len(chunks)
		if len(chunks) != entries {
			report.Problems = append(report.Problems,
				fmt.Sprintf("%s (%s) has %d chunks but %d index entries", d.Path, domain.ShortID(d.ID), len(chunks), entries))
		}
	}

	var orphans []string
	for id, n := range counts {
		if !known[id] {
			orphans = append(orphans, fmt.Sprintf("%d index entries belong to unknown document %s", n, domain.ShortID(id)))
		}
	}
	slices.Sort(orphans)
	report.Problems = append(report.Problems, orphans...)

	if ids, err := s.staging.List(ctx); err == nil {
		for _, id := range ids {
			if staged, err := s.staging.Read(ctx, id); err == nil && staged.Commit {
				report.Problems = append(report.Problems,
					fmt.Sprintf("commit of %s (%s) was interrupted and awaits replay", staged.Document.Path, domain.ShortID(id)))
			}
		}
	}
	return report, nil
}

// Reindex rebuilds the vector index from the embeddings stored with each
// chunk of every indexed document. It returns the number of entries written.
func (s *DocumentService) Reindex(ctx context.Context) (int, error) {
	logger.Section("Reindex")

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	err = s.ingest.exclusive("", func() error {
		var entries []domain.IndexEntry
		for _, d := range docs {
			if d.Status != domain.StatusIndexed {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks, err := s.docStore.GetChunks(ctx, d.ID)
			if err != nil {
				return fmt.Errorf("chunks of %s: %w", domain.ShortID(d.ID), err)
			}
			for _, c := range chunks {
				if len(c.Embedding) == 0 {
					return fmt.Errorf("%w: chunk %s has no stored embedding", domain.ErrStorageCorruption, c.ID)
				}
				entries = append(entries, domain.IndexEntry{ChunkID: c.ID, DocumentID: d.ID, Embedding: c.Embedding})
			}
			logger.Debug("Reindexing %s: %d entries", d.Path, len(chunks))
		}

		// The live index is untouched until every entry has been rebuilt.
		for id := range s.vectorIndex.DocumentCounts() {
			if err := s.vectorIndex.DeleteDocument(ctx, id); err != nil {
				return fmt.Errorf("clear index: %w", err)
			}
		}
		if err := s.vectorIndex.Upsert(ctx, entries...); err != nil {
			return fmt.Errorf("upsert entries: %w", err)
		}
		total = len(entries)

		if err := s.vectorIndex.Persist(ctx); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
		metrics.IndexEntries.Set(float64(s.vectorIndex.Count()))
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info("Reindexed %d entries from %d documents", total, len(docs))
	return total, nil
}
