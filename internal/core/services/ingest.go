package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs documents through the ingestion state machine:
// pending, partitioning, embedding, indexing, indexed.
//
// Every completed step is checkpointed on the document's PipelineJob and in
// its staging record, so a failed or interrupted run resumes where it stopped.
// The index step writes a commit record to staging before touching the vector
// index or the document store; a leftover commit record is replayed by Replay.
type IngestService struct {
	docStore    driven.DocumentStore
	jobStore    driven.JobStore
	staging     driven.StagingArea
	vectorIndex driven.VectorIndex
	embedder    driven.EmbeddingService
	normalisers driven.NormaliserRegistry
	partitioner driven.PostProcessor
	summariser  driven.PostProcessor
	preview     driven.PostProcessorPipeline
	settings    domain.IngestSettings
	detectMIME  func(path string) string

	locks keyedMutex

	// commitMu serialises index commits; Persist writes the whole snapshot.
	commitMu sync.Mutex
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	docStore driven.DocumentStore,
	jobStore driven.JobStore,
	staging driven.StagingArea,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
	normalisers driven.NormaliserRegistry,
	partitioner driven.PostProcessor,
	settings domain.IngestSettings,
) *IngestService {
	return &IngestService{
		docStore:    docStore,
		jobStore:    jobStore,
		staging:     staging,
		vectorIndex: vectorIndex,
		embedder:    embedder,
		normalisers: normalisers,
		partitioner: partitioner,
		settings:    settings,
		detectMIME:  defaultMIMEType,
	}
}

// SetSummariser enables the summarize step. Without a summariser, requesting
// it fails with domain.ErrGenerationUnavailable.
func (s *IngestService) SetSummariser(p driven.PostProcessor) {
	s.summariser = p
}

// SetPreviewPipeline sets the processors Preview runs. Without one, Preview
// runs the partitioner alone.
func (s *IngestService) SetPreviewPipeline(p driven.PostProcessorPipeline) {
	s.preview = p
}

// SetMIMEDetector replaces the extension based MIME type lookup.
func (s *IngestService) SetMIMEDetector(detect func(path string) string) {
	if detect != nil {
		s.detectMIME = detect
	}
}

// ImportDocument runs the given pipeline steps on one file.
func (s *IngestService) ImportDocument(ctx context.Context, path string, steps []domain.Step) (*domain.Document, error) {
	doc, _, err := s.importDocument(ctx, path, steps)
	return doc, err
}

// ImportDocuments ingests independent files on a bounded worker pool.
// Reports are returned in input order. Only cancellation of ctx is returned
// as an error; per-file failures are recorded in the reports.
func (s *IngestService) ImportDocuments(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error) {
	reports := make([]domain.ImportReport, len(paths))

	workers := s.settings.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			report := domain.ImportReport{Path: path}
			if err := gctx.Err(); err != nil {
				report.Err = err
				report.Error = err.Error()
				reports[i] = report
				return nil
			}
			doc, skipped, err := s.importDocument(gctx, path, steps)
			report.Document = doc
			report.Skipped = skipped
			if err != nil {
				report.Err = err
				report.Error = err.Error()
			}
			reports[i] = report
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

// Preview extracts and partitions a file without storing anything.
func (s *IngestService) Preview(ctx context.Context, path string) ([]domain.Chunk, error) {
	absPath, content, err := readSource(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.normalise(ctx, domain.DocumentID(absPath, content), absPath, content)
	if err != nil {
		return nil, err
	}
	if s.preview != nil {
		return s.preview.Process(ctx, doc)
	}
	return s.partitioner.Process(ctx, doc, nil)
}

// readSource resolves path and reads the file.
func readSource(path string) (string, []byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidArgument, path, err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", domain.ErrNotFound, absPath)
		}
		return "", nil, fmt.Errorf("read %s: %w", absPath, err)
	}
	return absPath, content, nil
}

// ListJobs returns pipeline jobs, newest first.
func (s *IngestService) ListJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error) {
	return s.jobStore.List(ctx, limit)
}

// ingestRun is the in-flight state of one document.
type ingestRun struct {
	doc    *domain.Document
	job    *domain.PipelineJob
	chunks []domain.Chunk
}

// importDocument reports skipped when an unchanged, indexed file was found.
//
//nolint:gocyclo // State machine with one branch per step
func (s *IngestService) importDocument(ctx context.Context, path string, steps []domain.Step) (doc *domain.Document, skipped bool, err error) {
	if len(steps) == 0 {
		steps = s.settings.Steps
	}
	steps, err = domain.NormaliseSteps(steps)
	if err != nil {
		return nil, false, err
	}
	if domain.HasStep(steps, domain.StepSummarize) && s.summariser == nil {
		return nil, false, fmt.Errorf("%w: the summarize step needs a generation provider", domain.ErrGenerationUnavailable)
	}
	if domain.HasStep(steps, domain.StepEmbed) && s.embedder == nil {
		return nil, false, domain.ErrEmbeddingUnavailable
	}

	absPath, content, err := readSource(path)
	if err != nil {
		return nil, false, err
	}

	id := domain.DocumentID(absPath, content)
	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, span := metrics.StartSpan(ctx, "ragmem.ImportDocument", "path", absPath, "document.id", id)
	defer func() { metrics.EndSpan(span, err) }()
	start := time.Now()

	existing, err := s.docStore.GetDocument(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	if existing != nil && existing.Status == domain.StatusIndexed {
		logger.Debug("%s is unchanged and indexed as %s", absPath, domain.ShortID(id))
		metrics.IngestDocuments.WithLabelValues("skipped").Inc()
		return existing, true, nil
	}

	r, err := s.prepare(ctx, id, absPath, content, existing, steps)
	if err != nil {
		return nil, false, err
	}

	logger.Info("Importing %s (%s), steps %v", absPath, domain.ShortID(id), r.job.RemainingSteps())

	for _, step := range r.job.RemainingSteps() {
		if err := s.runStep(ctx, r, step); err != nil {
			return r.doc, false, s.fail(ctx, r, step, err)
		}
	}

	if !domain.HasStep(steps, domain.StepIndex) {
		// Partial pipelines keep their chunks without index entries.
		if err := s.docStore.CommitDocument(ctx, r.doc, r.chunks); err != nil {
			return r.doc, false, s.fail(ctx, r, steps[len(steps)-1], err)
		}
		if err := s.staging.Remove(ctx, id); err != nil {
			logger.Warn("remove staging record for %s: %v", domain.ShortID(id), err)
		}
	}

	r.job.Status = domain.JobCompleted
	r.job.Error = ""
	if err := s.jobStore.Save(ctx, r.job); err != nil {
		logger.Warn("save job %s: %v", r.job.ID, err)
	}

	metrics.IngestDocuments.WithLabelValues(string(r.doc.Status)).Inc()
	metrics.ObserveSince(metrics.IngestDuration, start)
	logger.Info("Imported %s: %d chunks, status %s", absPath, len(r.chunks), r.doc.Status)
	return r.doc, false, nil
}

// prepare loads or creates the document, job and checkpointed chunks.
func (s *IngestService) prepare(ctx context.Context, id, path string, content []byte,
	existing *domain.Document, steps []domain.Step) (*ingestRun, error) {
	r := &ingestRun{}

	job, err := s.jobStore.GetByDocument(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get job: %w", err)
	}

	var staged *driven.StagedDocument
	if job != nil && job.Status != domain.JobCompleted && slices.Equal(job.Steps, steps) {
		staged, err = s.staging.Read(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			staged = nil
			job.LastCompletedStep = ""
		case err != nil:
			return nil, fmt.Errorf("read staging record: %w", err)
		case staged.Commit:
			// A commit record must be replayed, never re-run.
			staged.Commit = false
		}
		if job.LastCompletedStep != "" {
			logger.Info("Resuming %s after step %s", path, job.LastCompletedStep)
		}
	} else {
		if job != nil && job.Status == domain.JobRunning {
			job.Status = domain.JobFailed
			job.Error = "replaced by a run with different steps"
			if err := s.jobStore.Save(ctx, job); err != nil {
				logger.Warn("save job %s: %v", job.ID, err)
			}
		}
		now := time.Now().UTC()
		job = &domain.PipelineJob{
			ID:         uuid.NewString(),
			DocumentID: id,
			Path:       path,
			Steps:      steps,
			CreatedAt:  now,
		}
		if err := s.staging.Remove(ctx, id); err != nil {
			return nil, fmt.Errorf("clear staging record: %w", err)
		}
	}
	job.Status = domain.JobRunning
	if err := s.jobStore.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	r.job = job

	if staged != nil && job.LastCompletedStep != "" {
		doc := staged.Document
		r.doc = &doc
		r.chunks = staged.Chunks
	} else {
		doc, err := s.normalise(ctx, id, path, content)
		if err != nil {
			job.Status = domain.JobFailed
			job.Error = err.Error()
			if serr := s.jobStore.Save(context.WithoutCancel(ctx), job); serr != nil {
				logger.Warn("save job %s: %v", job.ID, serr)
			}
			return nil, err
		}
		r.doc = doc
	}
	if existing != nil {
		r.doc.CreatedAt = existing.CreatedAt
	}

	// A fresh run starts from pending, a resumed one from its checkpoint.
	r.doc.Status = domain.StatusPending
	if job.LastCompletedStep != "" {
		r.doc.Status = job.LastCompletedStep.Status()
	}
	r.doc.FailedStep = ""
	r.doc.FailureReason = ""
	r.doc.Attempts = 0
	if err := s.docStore.SaveDocument(ctx, r.doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return r, nil
}

// normalise extracts text and builds a pending document.
func (s *IngestService) normalise(ctx context.Context, id, path string, content []byte) (*domain.Document, error) {
	raw := &domain.RawDocument{
		Path:     path,
		MIMEType: s.detectMIME(path),
		Content:  content,
	}
	result, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	doc := result.Document
	doc.ID = id
	doc.Path = path
	doc.ContentHash = domain.ContentHash(content)
	if doc.MIMEType == "" {
		doc.MIMEType = raw.MIMEType
	}
	if doc.Title == "" {
		doc.Title = filepath.Base(path)
	}
	return &doc, nil
}

// runStep executes one step and checkpoints it.
func (s *IngestService) runStep(ctx context.Context, r *ingestRun, step domain.Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.advance(ctx, r.doc, step.Status()); err != nil {
		return err
	}

	switch step {
	case domain.StepPartition:
		chunks, err := s.partitioner.Process(ctx, r.doc, nil)
		if err != nil {
			return err
		}
		r.chunks = chunks
	case domain.StepSummarize:
		chunks, err := s.summariser.Process(ctx, r.doc, r.chunks)
		if err != nil {
			return err
		}
		r.chunks = chunks
	case domain.StepEmbed:
		if err := s.embedChunks(ctx, r); err != nil {
			return err
		}
	case domain.StepIndex:
		if err := s.commit(ctx, r); err != nil {
			return err
		}
		r.job.LastCompletedStep = step
		return nil
	}

	r.job.LastCompletedStep = step
	if err := s.staging.Write(ctx, &driven.StagedDocument{Document: *r.doc, Chunks: r.chunks}); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := s.jobStore.Save(ctx, r.job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// advance records a status transition. Re-entering the current status is a
// no-op, which happens when partition and summarize run back to back.
func (s *IngestService) advance(ctx context.Context, doc *domain.Document, next domain.DocumentStatus) error {
	if doc.Status == next {
		return nil
	}
	if !doc.Status.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s", doc.Status, next)
	}
	if err := s.docStore.UpdateStatus(ctx, doc.ID, next, "", ""); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	doc.Status = next
	return nil
}

// embedChunks embeds chunks in batches, retrying transient failures.
func (s *IngestService) embedChunks(ctx context.Context, r *ingestRun) error {
	batchSize := s.settings.BatchSize
	if batchSize <= 0 {
		batchSize = len(r.chunks)
	}

	for start := 0; start < len(r.chunks); start += batchSize {
		end := min(start+batchSize, len(r.chunks))
		texts := make([]string, 0, end-start)
		for _, c := range r.chunks[start:end] {
			texts = append(texts, c.Content)
		}

		vectors, attempts, err := s.embedBatch(ctx, texts)
		r.doc.Attempts += attempts
		r.job.Attempts += attempts
		if err != nil {
			return err
		}

		for i, v := range vectors {
			if dims := s.vectorIndex.Dimensions(); dims != 0 && len(v) != dims {
				return fmt.Errorf("%w: embedding has %d dimensions, index has %d",
					domain.ErrInvalidArgument, len(v), dims)
			}
			r.chunks[start+i].Embedding = v
		}
	}
	return nil
}

// embedBatch calls the embedder with bounded exponential backoff.
// Only domain.ErrEmbeddingService failures are retried.
func (s *IngestService) embedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	maxAttempts := max(s.settings.MaxAttempts, 1)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.settings.InitialBackoff
	eb.MaxInterval = s.settings.MaxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)

	attempts := 0
	var vectors [][]float32
	op := func() error {
		attempts++
		v, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, domain.ErrEmbeddingService) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(v) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: got %d embeddings for %d texts",
				domain.ErrEmbeddingService, len(v), len(texts)))
		}
		vectors = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.EmbeddingRetries.Inc()
		logger.Warn("embedding attempt %d/%d failed, retrying in %s: %v", attempts, maxAttempts, wait, err)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (last error: %w)", ctxErr, err)
		}
		return nil, attempts, err
	}
	return vectors, attempts, nil
}

// commit makes the document visible. Writing the commit record is the commit
// point: before it nothing is applied, after it the commit completes even if
// ctx is cancelled, and a crash is repaired by Replay.
func (s *IngestService) commit(ctx context.Context, r *ingestRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, c := range r.chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidArgument, c.ID)
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	indexed := *r.doc
	indexed.Status = domain.StatusIndexed
	staged := &driven.StagedDocument{Document: indexed, Chunks: r.chunks, Commit: true}
	if err := s.staging.Write(ctx, staged); err != nil {
		return fmt.Errorf("write commit record: %w", err)
	}

	if err := s.apply(context.WithoutCancel(ctx), staged); err != nil {
		return err
	}
	*r.doc = staged.Document
	return nil
}

// apply carries out a commit record. It is idempotent so Replay can repeat it.
// Documents previously ingested from the same path are superseded.
func (s *IngestService) apply(ctx context.Context, staged *driven.StagedDocument) error {
	doc := staged.Document
	chunks := staged.Chunks

	previous, err := s.docStore.FindByPath(ctx, doc.Path)
	if err != nil {
		return fmt.Errorf("find previous versions: %w", err)
	}
	var superseded []string
	for _, p := range previous {
		if p.ID != doc.ID {
			superseded = append(superseded, p.ID)
		}
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, domain.IndexEntry{ChunkID: c.ID, DocumentID: doc.ID, Embedding: c.Embedding})
	}

	if err := s.vectorIndex.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear index entries: %w", err)
	}
	if err := s.vectorIndex.Upsert(ctx, entries...); err != nil {
		return fmt.Errorf("upsert index entries: %w", err)
	}
	if err := s.vectorIndex.Persist(ctx); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	doc.Status = domain.StatusIndexed
	doc.FailedStep = ""
	doc.FailureReason = ""
	if err := s.docStore.CommitDocument(ctx, &doc, chunks); err != nil {
		s.rollbackIndex(ctx, doc.ID)
		return fmt.Errorf("commit document: %w", err)
	}

	// Superseded entries stay searchable until the new version is committed.
	for _, id := range superseded {
		if err := s.vectorIndex.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("remove superseded entries: %w", err)
		}
	}
	if len(superseded) > 0 {
		if err := s.vectorIndex.Persist(ctx); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}
	for _, id := range superseded {
		if err := s.docStore.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("remove superseded document: %w", err)
		}
		if err := s.jobStore.DeleteByDocument(ctx, id); err != nil {
			logger.Warn("remove jobs of superseded document %s: %v", domain.ShortID(id), err)
		}
		if err := s.staging.Remove(ctx, id); err != nil {
			logger.Warn("remove staging record of superseded document %s: %v", domain.ShortID(id), err)
		}
		logger.Info("Superseded %s (%s)", doc.Path, domain.ShortID(id))
	}

	if err := s.staging.Remove(ctx, doc.ID); err != nil {
		return fmt.Errorf("remove commit record: %w", err)
	}
	staged.Document = doc
	metrics.IndexEntries.Set(float64(s.vectorIndex.Count()))
	return nil
}

// rollbackIndex removes the entries of a document whose commit failed.
func (s *IngestService) rollbackIndex(ctx context.Context, documentID string) {
	if err := s.vectorIndex.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("roll back index entries of %s: %v", domain.ShortID(documentID), err)
		return
	}
	if err := s.vectorIndex.Persist(ctx); err != nil {
		logger.Warn("persist index after rollback of %s: %v", domain.ShortID(documentID), err)
	}
	metrics.IndexEntries.Set(float64(s.vectorIndex.Count()))
}

// Replay completes commits interrupted by a crash. Checkpoint records are
// left for the next import to resume. It returns the number of documents replayed.
func (s *IngestService) Replay(ctx context.Context) (int, error) {
	ids, err := s.staging.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list staging records: %w", err)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	replayed := 0
	var errs []error
	for _, id := range ids {
		staged, err := s.staging.Read(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("staging record %s: %w", domain.ShortID(id), err))
			continue
		}
		if !staged.Commit {
			continue
		}
		if err := s.apply(ctx, staged); err != nil {
			errs = append(errs, fmt.Errorf("replay %s: %w", domain.ShortID(id), err))
			continue
		}
		if job, err := s.jobStore.GetByDocument(ctx, id); err == nil && job.Status != domain.JobCompleted {
			job.LastCompletedStep = domain.StepIndex
			job.Status = domain.JobCompleted
			job.Error = ""
			if err := s.jobStore.Save(ctx, job); err != nil {
				logger.Warn("save replayed job %s: %v", job.ID, err)
			}
		}
		logger.Info("Replayed interrupted commit of %s (%s)", staged.Document.Path, domain.ShortID(id))
		replayed++
	}
	return replayed, errors.Join(errs...)
}

// fail records a failed step on the document and job and returns an IngestError.
// The record is written even when ctx is cancelled.
func (s *IngestService) fail(ctx context.Context, r *ingestRun, step domain.Step, cause error) error {
	ctx = context.WithoutCancel(ctx)

	var perm *backoff.PermanentError
	if errors.As(cause, &perm) {
		cause = perm.Err
	}

	r.doc.Status = domain.StatusFailed
	r.doc.FailedStep = step
	r.doc.FailureReason = cause.Error()
	if err := s.docStore.SaveDocument(ctx, r.doc); err != nil {
		logger.Warn("record failure of %s: %v", domain.ShortID(r.doc.ID), err)
	}

	r.job.Status = domain.JobFailed
	r.job.Error = cause.Error()
	if err := s.jobStore.Save(ctx, r.job); err != nil {
		logger.Warn("save job %s: %v", r.job.ID, err)
	}

	metrics.IngestDocuments.WithLabelValues(string(domain.StatusFailed)).Inc()
	ierr := &domain.IngestError{
		DocumentID: r.doc.ID,
		Path:       r.doc.Path,
		Step:       step,
		Attempts:   r.doc.Attempts,
		Err:        cause,
	}
	logger.Warn("%v", ierr)
	return ierr
}

// defaultMIMEType resolves a MIME type from the file extension.
func defaultMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// keyedMutex holds one mutex per key, created on demand and dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// exclusive runs fn while holding the document's lock and the commit lock,
// so no import of the same document and no index commit run concurrently.
// An empty id takes only the commit lock.
func (s *IngestService) exclusive(id string, fn func() error) error {
	if id != "" {
		unlock := s.locks.Lock(id)
		defer unlock()
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return fn()
}
