package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{
		ID:       "doc-1",
		Path:     "/notes/a.txt",
		Title:    "Test Document",
		Metadata: map[string]any{"author": "someone"},
	}
	require.NoError(t, store.SaveDocument(ctx, doc))
	assert.False(t, doc.CreatedAt.IsZero())

	saved, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "/notes/a.txt", saved.Path)
	assert.Equal(t, "someone", saved.Metadata["author"])

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_CommitDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", Status: domain.StatusIndexed}
	chunks := []domain.Chunk{
		{ID: "doc-1-0", DocumentID: "doc-1", Position: 0, Content: "a"},
		{ID: "doc-1-1", DocumentID: "doc-1", Position: 1, Content: "b"},
	}
	require.NoError(t, store.CommitDocument(ctx, doc, chunks))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ChunkCount)

	chunk, err := store.GetChunk(ctx, "doc-1-1")
	require.NoError(t, err)
	assert.Equal(t, "b", chunk.Content)

	// Mutating the caller's slice does not affect the store.
	chunks[0].Content = "changed"
	stored, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "a", stored[0].Content)

	bad := []domain.Chunk{{ID: "x-0", DocumentID: "x"}}
	err = store.CommitDocument(ctx, &domain.Document{ID: "doc-2"}, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = store.GetDocument(ctx, "doc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_UpdateStatus(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))

	require.NoError(t, store.UpdateStatus(ctx, "doc-1", domain.StatusFailed, domain.StepPartition, "bad input"))
	got, _ := store.GetDocument(ctx, "doc-1")
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.StepPartition, got.FailedStep)

	require.NoError(t, store.UpdateStatus(ctx, "doc-1", domain.StatusPending, domain.StepPartition, "x"))
	got, _ = store.GetDocument(ctx, "doc-1")
	assert.Empty(t, got.FailureReason)

	assert.ErrorIs(t, store.UpdateStatus(ctx, "missing", domain.StatusIndexed, "", ""), domain.ErrNotFound)
}

func TestDocumentStore_Lookups(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	for _, d := range []*domain.Document{
		{ID: "a", Path: "/x.txt", ContentHash: "h1"},
		{ID: "b", Path: "/x.txt", ContentHash: "h2"},
		{ID: "c", Path: "/y.txt", ContentHash: "h1"},
	} {
		require.NoError(t, store.SaveDocument(ctx, d))
	}

	byHash, err := store.FindByContentHash(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, byHash, 2)

	byPath, err := store.FindByPath(ctx, "/x.txt")
	require.NoError(t, err)
	assert.Len(t, byPath, 2)

	all, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.DeleteDocument(ctx, "a"))
	all, _ = store.ListDocuments(ctx)
	assert.Len(t, all, 2)
}

func TestDocumentStore_Concurrency(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.ChunkID("doc", i)
			_ = store.CommitDocument(ctx, &domain.Document{ID: id},
				[]domain.Chunk{{ID: domain.ChunkID(id, 0), DocumentID: id}})
			_, _ = store.ListDocuments(ctx)
		}(i)
	}
	wg.Wait()

	all, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestJobStore(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	first := &domain.PipelineJob{ID: "j1", DocumentID: "d1", Status: domain.JobFailed}
	second := &domain.PipelineJob{ID: "j2", DocumentID: "d1", Status: domain.JobRunning}
	other := &domain.PipelineJob{ID: "j3", DocumentID: "d2", Status: domain.JobCompleted}
	for _, j := range []*domain.PipelineJob{first, second, other} {
		require.NoError(t, store.Save(ctx, j))
	}

	latest, err := store.GetByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "j2", latest.ID)

	jobs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j3", jobs[0].ID)

	require.NoError(t, store.DeleteByDocument(ctx, "d1"))
	_, err = store.Get(ctx, "j1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStagingArea(t *testing.T) {
	area := NewStagingArea()
	ctx := context.Background()

	require.NoError(t, area.Write(ctx, &driven.StagedDocument{
		Document: domain.Document{ID: "b"},
		Chunks:   []domain.Chunk{{ID: "b-0"}},
		Commit:   true,
	}))
	require.NoError(t, area.Write(ctx, &driven.StagedDocument{Document: domain.Document{ID: "a"}}))

	ids, err := area.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	rec, err := area.Read(ctx, "b")
	require.NoError(t, err)
	assert.True(t, rec.Commit)
	assert.Len(t, rec.Chunks, 1)

	require.NoError(t, area.Remove(ctx, "b"))
	_, err = area.Read(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
