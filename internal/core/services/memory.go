package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
)

// Ensure Memory implements the interface.
var _ driving.MemoryService = (*Memory)(nil)

// MemoryDeps holds the collaborators of one memory instance.
// Embedder, Generator and Summariser may be nil.
type MemoryDeps struct {
	DocStore    driven.DocumentStore
	JobStore    driven.JobStore
	Staging     driven.StagingArea
	VectorIndex driven.VectorIndex
	Embedder    driven.EmbeddingService
	Generator   driven.GenerationService
	Normalisers driven.NormaliserRegistry
	Partitioner driven.PostProcessor
	Summariser  driven.PostProcessor
	Preview     driven.PostProcessorPipeline
	Prompts     driven.PromptStore
	Settings    domain.AppSettings

	// DetectMIME overrides the extension based MIME lookup.
	DetectMIME func(path string) string
}

// Memory is one memory instance: ingestion, retrieval, answering and
// document management over a shared vector index and document store.
type Memory struct {
	*IngestService
	*SearchService
	*AnswerService
	*DocumentService

	vectorIndex driven.VectorIndex
	embedder    driven.EmbeddingService
	generator   driven.GenerationService
}

// NewMemory wires the services of a memory instance.
func NewMemory(deps MemoryDeps) *Memory {
	ingest := NewIngestService(
		deps.DocStore,
		deps.JobStore,
		deps.Staging,
		deps.VectorIndex,
		deps.Embedder,
		deps.Normalisers,
		deps.Partitioner,
		deps.Settings.Ingest,
	)
	if deps.Summariser != nil {
		ingest.SetSummariser(deps.Summariser)
	}
	if deps.Preview != nil {
		ingest.SetPreviewPipeline(deps.Preview)
	}
	ingest.SetMIMEDetector(deps.DetectMIME)

	searchSettings := deps.Settings.Search
	searchSettings.ContextTokens = deps.Settings.ContextBudget()
	search := NewSearchService(deps.DocStore, deps.VectorIndex, deps.Embedder, searchSettings)
	answer := NewAnswerService(
		search,
		NewAnswerAssembler(deps.Prompts),
		deps.Generator,
		searchSettings,
		deps.Settings.Generation,
	)

	return &Memory{
		IngestService:   ingest,
		SearchService:   search,
		AnswerService:   answer,
		DocumentService: NewDocumentService(deps.DocStore, deps.JobStore, deps.Staging, deps.VectorIndex, ingest),
		vectorIndex:     deps.VectorIndex,
		embedder:        deps.Embedder,
		generator:       deps.Generator,
	}
}

// Open loads the persisted vector index and replays interrupted commits.
func (m *Memory) Open(ctx context.Context) error {
	defer logger.Timer("open memory")()

	if err := m.vectorIndex.Load(ctx); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	n, err := m.Replay(ctx)
	if n > 0 {
		logger.Info("Replayed %d interrupted commit(s)", n)
	}
	if err != nil {
		return err
	}
	metrics.IndexEntries.Set(float64(m.vectorIndex.Count()))
	return nil
}

// Load loads the persisted vector index without replaying interrupted
// commits. Processes that do not hold the memory lock use it instead of Open.
func (m *Memory) Load(ctx context.Context) error {
	if err := m.vectorIndex.Load(ctx); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	metrics.IndexEntries.Set(float64(m.vectorIndex.Count()))
	return nil
}

// Close releases the vector index and the AI services.
func (m *Memory) Close() error {
	var errs []error
	if m.embedder != nil {
		errs = append(errs, m.embedder.Close())
	}
	if m.generator != nil {
		errs = append(errs, m.generator.Close())
	}
	errs = append(errs, m.vectorIndex.Close())
	return errors.Join(errs...)
}
