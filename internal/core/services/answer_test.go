package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

func result(docID, title, content string, score float64) domain.SearchResult {
	return domain.SearchResult{
		Chunk:    domain.Chunk{ID: docID + "-0", DocumentID: docID, Content: content},
		Document: domain.Document{ID: docID, Path: "/docs/" + title + ".txt", Title: title},
		Score:    score,
	}
}

func TestAssemble(t *testing.T) {
	a := NewAnswerAssembler(&mockPrompts{template: testAnswerTemplate})

	results := []domain.SearchResult{
		result("d2", "second", "two two two", 0.5),
		result("d1", "first", "one one", 0.9),
		result("d1", "first", "uno uno", 0.7),
		result("d3", "third", "three three three three", 0.3),
	}

	p, err := a.Assemble("what?", results, 7)
	require.NoError(t, err)

	require.Len(t, p.Used, 3)
	assert.Equal(t, 0.9, p.Used[0].Score)
	assert.Equal(t, 0.7, p.Used[1].Score)
	assert.Equal(t, 0.5, p.Used[2].Score)

	require.Len(t, p.Sources, 2)
	assert.Equal(t, "d1", p.Sources[0].DocumentID)
	assert.Equal(t, 0.9, p.Sources[0].Relevance)
	assert.Equal(t, "d2", p.Sources[1].DocumentID)

	assert.Contains(t, p.Text, "==== [File:first;Relevance:90.0%]:\none one\n")
	assert.Contains(t, p.Text, "==== [File:second;Relevance:50.0%]:\ntwo two two\n")
	assert.NotContains(t, p.Text, "three")
	assert.True(t, strings.HasSuffix(p.Text, "Question: what?\nAnswer: "))
	assert.Less(t, strings.Index(p.Text, "one one"), strings.Index(p.Text, "uno uno"))
}

func TestAssemble_OverflowDropsLowerRanked(t *testing.T) {
	a := NewAnswerAssembler(&mockPrompts{template: testAnswerTemplate})

	// The second chunk overflows; the third would fit but ranks lower.
	results := []domain.SearchResult{
		result("d1", "a", "one two", 0.9),
		result("d2", "b", "one two three four five", 0.8),
		result("d3", "c", "x", 0.7),
	}
	p, err := a.Assemble("q", results, 4)
	require.NoError(t, err)
	require.Len(t, p.Used, 1)
	assert.Equal(t, "d1", p.Used[0].Document.ID)
}

func TestAssemble_NothingFits(t *testing.T) {
	prompts := &mockPrompts{err: errBoom}
	a := NewAnswerAssembler(prompts)

	p, err := a.Assemble("q", []domain.SearchResult{result("d1", "a", "too many words here", 0.9)}, 2)
	require.NoError(t, err, "the template is not loaded without context")
	assert.Empty(t, p.Used)
	assert.Empty(t, p.Sources)
	assert.Empty(t, p.Text)

	_, err = a.Assemble("q", nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func newTestAnswer(env *testEnv, gen *mockGenerator) *AnswerService {
	settings := domain.SearchSettings{MaxMatches: 2, AnswerTokens: 100}
	svc := NewAnswerService(
		NewSearchService(env.docStore, env.index, env.embedder, settings),
		NewAnswerAssembler(&mockPrompts{template: testAnswerTemplate}),
		nil,
		settings,
		domain.GenerationSettings{MaxTokens: 64},
	)
	if gen != nil {
		svc.generator = gen
	}
	return svc
}

func TestAsk_EmptyIndexAnswersNotFound(t *testing.T) {
	env := newTestEnv(t)
	gen := &mockGenerator{reply: []string{"should not be used"}}

	answer, err := newTestAnswer(env, gen).Ask(context.Background(), "who wrote this?")
	require.NoError(t, err)

	assert.Equal(t, domain.NoAnswer, answer.Text)
	assert.False(t, answer.HasAnswer())
	assert.Empty(t, answer.Sources)
	assert.Zero(t, gen.promptCount())
}

func TestAsk_StreamsGroundedAnswer(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fruit.txt", threeChunkText)
	ctx := context.Background()
	doc, err := env.ingest.ImportDocument(ctx, path, nil)
	require.NoError(t, err)

	gen := &mockGenerator{reply: []string{"Cherries ", "are ", "red."}}
	stream, err := newTestAnswer(env, gen).AskStream(ctx, "cherry carrot celery")
	require.NoError(t, err)
	defer stream.Close()

	require.NotEmpty(t, stream.Sources(), "sources are known before the first fragment")
	assert.Equal(t, doc.ID, stream.Sources()[0].DocumentID)

	var got []string
	for text, err := range stream.Fragments() {
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"Cherries ", "are ", "red."}, got)

	answer := stream.Answer()
	assert.Equal(t, "Cherries are red.", answer.Text)
	assert.True(t, answer.HasAnswer())
	assert.Equal(t, "cherry carrot celery", answer.Question)
	assert.NotEmpty(t, answer.Context)
	assert.Positive(t, answer.Elapsed)

	// The stream is not restartable.
	for range stream.Fragments() {
		t.Fatal("second iteration yielded a fragment")
	}

	require.Equal(t, 1, gen.promptCount())
	assert.Contains(t, gen.prompts[0], "Question: cherry carrot celery")
	assert.Contains(t, gen.prompts[0], "==== [File:fruit;Relevance:")
	assert.Equal(t, []string{"\n\n"}, gen.opts[0].StopWords)
	assert.Equal(t, 64, gen.opts[0].MaxTokens)
}

func TestAsk_AnswerLengthDefaultsToAnswerTokens(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fruit.txt", threeChunkText)
	ctx := context.Background()
	_, err := env.ingest.ImportDocument(ctx, path, nil)
	require.NoError(t, err)

	gen := &mockGenerator{reply: []string{"Red."}}
	svc := newTestAnswer(env, gen)
	svc.generation.MaxTokens = 0

	_, err = svc.Ask(ctx, "cherry carrot celery")
	require.NoError(t, err)
	require.Equal(t, 1, gen.promptCount())
	assert.Equal(t, 100, gen.opts[0].MaxTokens)
}

func TestAsk_Errors(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fruit.txt", threeChunkText)
	_, err := env.ingest.ImportDocument(context.Background(), path, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		gen  *mockGenerator
		q    string
		want error
	}{
		{name: "empty question", gen: &mockGenerator{}, q: "  ", want: domain.ErrInvalidArgument},
		{name: "no generator", gen: nil, q: "cherry", want: domain.ErrGenerationUnavailable},
		{name: "generation fails to start", gen: &mockGenerator{startErr: errBoom}, q: "cherry", want: domain.ErrGenerationService},
		{name: "stream fails midway", gen: &mockGenerator{reply: []string{"par"}, streamErr: errBoom}, q: "cherry", want: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAnswer(env, tt.gen).Ask(context.Background(), tt.q)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAskStream_CancellationStopsDelivery(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fruit.txt", threeChunkText)
	_, err := env.ingest.ImportDocument(context.Background(), path, nil)
	require.NoError(t, err)

	gen := &mockGenerator{reply: []string{"a", "b", "c", "d"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := newTestAnswer(env, gen).AskStream(ctx, "cherry")
	require.NoError(t, err)

	var got []string
	for text, err := range stream.Fragments() {
		require.NoError(t, err)
		got = append(got, text)
		if len(got) == 2 {
			cancel()
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "ab", stream.Answer().Text)
}

func TestAsk_ConsumerBreakKeepsPartialAnswer(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fruit.txt", threeChunkText)
	_, err := env.ingest.ImportDocument(context.Background(), path, nil)
	require.NoError(t, err)

	stream, err := newTestAnswer(env, &mockGenerator{reply: []string{"x", "y", "z"}}).AskStream(context.Background(), "cherry")
	require.NoError(t, err)
	for range stream.Fragments() {
		break
	}
	stream.Close()
	assert.Equal(t, "x", stream.Answer().Text)
}
