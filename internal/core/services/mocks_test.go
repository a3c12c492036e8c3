package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/vectorfs"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/normalisers"
	"github.com/custodia-labs/ragmem/internal/normalisers/plaintext"
	"github.com/custodia-labs/ragmem/internal/postprocessors/partitioner"
)

// --- Mock implementations ---

// mockEmbedder wraps the hash embedder and injects failures.
type mockEmbedder struct {
	mu        sync.Mutex
	inner     *hash.EmbeddingService
	failFirst int   // number of EmbedBatch calls that fail
	failErr   error // error returned by failing calls
	embedErr  error // error returned by Embed
	calls     int
	embedded  int
	afterCall func()
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{inner: hash.NewEmbeddingService(64)}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.inner.Embed(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.failFirst
	after := m.afterCall
	m.mu.Unlock()

	if after != nil {
		defer after()
	}
	if fail {
		err := m.failErr
		if err == nil {
			err = domain.ErrEmbeddingService
		}
		return nil, err
	}

	m.mu.Lock()
	m.embedded += len(texts)
	m.mu.Unlock()
	return m.inner.EmbedBatch(ctx, texts)
}

func (m *mockEmbedder) Dimensions() int              { return m.inner.Dimensions() }
func (m *mockEmbedder) ModelName() string            { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) embeddedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedded
}

// setFailures makes the next n EmbedBatch calls fail with err.
func (m *mockEmbedder) setFailures(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls, m.failFirst, m.failErr = 0, n, err
}

func (m *mockEmbedder) setAfterCall(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterCall = fn
}

// countingProcessor counts calls to a wrapped post-processor.
type countingProcessor struct {
	driven.PostProcessor
	mu    sync.Mutex
	calls int
}

func (p *countingProcessor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.PostProcessor.Process(ctx, doc, chunks)
}

func (p *countingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// faultyIndex fails Upsert while upsertErr is set.
type faultyIndex struct {
	driven.VectorIndex
	upsertErr error
}

func (f *faultyIndex) Upsert(ctx context.Context, entries ...domain.IndexEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.VectorIndex.Upsert(ctx, entries...)
}

// failingCommitStore fails CommitDocument while commitErr is set.
type failingCommitStore struct {
	driven.DocumentStore
	commitErr error
}

func (f *failingCommitStore) CommitDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	return f.DocumentStore.CommitDocument(ctx, doc, chunks)
}

// mockGenerator streams a fixed reply and records prompts.
type mockGenerator struct {
	mu        sync.Mutex
	reply     []string
	streamErr error
	startErr  error
	prompts   []string
	opts      []driven.GenerateOptions
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (<-chan driven.Fragment, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}

	ch := make(chan driven.Fragment)
	go func() {
		defer close(ch)
		for _, text := range m.reply {
			select {
			case <-ctx.Done():
				return
			case ch <- driven.Fragment{Text: text}:
			}
		}
		if m.streamErr != nil {
			select {
			case <-ctx.Done():
			case ch <- driven.Fragment{Err: m.streamErr}:
			}
		}
	}()
	return ch, nil
}

func (m *mockGenerator) GenerateComplete(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ch, err := m.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return driven.CollectFragments(ctx, ch)
}

func (m *mockGenerator) ModelName() string            { return "mock" }
func (m *mockGenerator) Ping(_ context.Context) error { return nil }
func (m *mockGenerator) Close() error                 { return nil }

func (m *mockGenerator) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockPrompts returns a fixed template.
type mockPrompts struct {
	template string
	err      error
}

func (m *mockPrompts) Load(_ string) (string, error) { return m.template, m.err }
func (m *mockPrompts) Reload()                       {}

const testAnswerTemplate = "Facts:\n{{facts}}\nQuestion: {{question}}\nAnswer: "

// --- Fixtures ---

type testEnv struct {
	docStore    *memory.DocumentStore
	jobStore    *memory.JobStore
	staging     *memory.StagingArea
	index       *vectorfs.Index
	embedder    *mockEmbedder
	partitioner *countingProcessor
	registry    *normalisers.Registry
	ingest      *IngestService
	dir         string
}

func testIngestSettings() domain.IngestSettings {
	return domain.IngestSettings{
		Workers:        2,
		BatchSize:      2,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Steps:          domain.PipelineWithoutSummary(),
	}
}

// newTestEnv wires an ingest service over in-memory stores and a
// temp-dir vector index. Chunks hold at most 8 tokens.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	p, err := partitioner.New(
		partitioner.WithMaxTokensPerChunk(8),
		partitioner.WithMaxTokensPerLine(8),
		partitioner.WithOverlapTokens(2),
	)
	require.NoError(t, err)

	registry := normalisers.NewRegistry()
	registry.Register(plaintext.New())

	env := &testEnv{
		docStore:    memory.NewDocumentStore(),
		jobStore:    memory.NewJobStore(),
		staging:     memory.NewStagingArea(),
		index:       vectorfs.New(filepath.Join(t.TempDir(), "vectors")),
		embedder:    newMockEmbedder(),
		partitioner: &countingProcessor{PostProcessor: p},
		registry:    registry,
		dir:         t.TempDir(),
	}
	env.rewire(env.index)
	return env
}

// rewire rebuilds the ingest service over the given vector index.
func (e *testEnv) rewire(index driven.VectorIndex) {
	e.ingest = NewIngestService(
		e.docStore, e.jobStore, e.staging, index, e.embedder,
		e.registry, e.partitioner, testIngestSettings(),
	)
	e.ingest.SetMIMEDetector(normalisers.DetectMIMEType)
}

// writeFile creates a text file in the env directory.
func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// threeChunkText partitions into three chunks at a budget of 8 tokens.
const threeChunkText = "alpha apple avocado almond apricot anise\n\n" +
	"banana blueberry blackberry basil bean beet\n\n" +
	"cherry carrot celery cabbage cumin clove"

var errBoom = errors.New("boom")
