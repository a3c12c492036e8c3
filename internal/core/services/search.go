package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
)

// SearchService embeds a query, takes the nearest chunks from the vector
// index and hydrates them from the document store.
type SearchService struct {
	docStore         driven.DocumentStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	minRelevance     float64
}

// NewSearchService creates a new search service.
func NewSearchService(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	settings domain.SearchSettings,
) *SearchService {
	return &SearchService{
		docStore:         docStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		minRelevance:     settings.MinRelevance,
	}
}

// Search returns up to maxMatches chunks ordered by descending similarity.
//
// An empty index or an empty query returns no results without calling the
// embedder. Hits whose chunk or document has disappeared are skipped.
func (s *SearchService) Search(ctx context.Context, query string, maxMatches int) ([]domain.SearchResult, error) {
	if maxMatches <= 0 {
		return nil, fmt.Errorf("%w: max matches must be positive, got %d", domain.ErrInvalidArgument, maxMatches)
	}

	logger.Section("Search Execution")
	logger.Debug("Query: %q, max matches: %d", query, maxMatches)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.vectorIndex.Count() == 0 {
		logger.Debug("Vector index is empty, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	defer metrics.ObserveSince(metrics.SearchDuration, time.Now())

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := s.vectorIndex.Search(ctx, embedding, maxMatches)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results, err := s.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}
	logger.Info("Search returned %d results", len(results))
	return results, nil
}

// hydrate loads the chunk and document of each hit, keeping rank order.
func (s *SearchService) hydrate(ctx context.Context, hits []domain.VectorHit) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(hits))
	docs := make(map[string]*domain.Document)

	for _, hit := range hits {
		if hit.Similarity < s.minRelevance {
			logger.Debug("Dropping %s: relevance %.3f below %.3f", hit.ChunkID, hit.Similarity, s.minRelevance)
			continue
		}

		chunk, err := s.docStore.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Index entry %s has no stored chunk, skipping", hit.ChunkID)
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = s.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("Chunk %s has no stored document, skipping", hit.ChunkID)
					continue
				}
				return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		chunk.Embedding = nil
		results = append(results, domain.SearchResult{
			Chunk:    *chunk,
			Document: *doc,
			Score:    hit.Similarity,
		})
	}
	return results, nil
}
