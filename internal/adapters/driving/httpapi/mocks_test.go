package httpapi

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// mockMemory implements driving.MemoryService with canned data.
type mockMemory struct {
	docs      []domain.Document
	jobs      []domain.PipelineJob
	results   []domain.SearchResult
	fragments []string
	sources   []domain.Source
	streamErr error
	err       error

	imported  []string
	steps     []domain.Step
	deleted   []string
	lastLimit int
}

func (m *mockMemory) ImportDocument(_ context.Context, path string, steps []domain.Step) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.imported = append(m.imported, path)
	m.steps = steps
	return &domain.Document{ID: "doc-" + path, Path: path, Status: domain.StatusIndexed}, nil
}

func (m *mockMemory) ImportDocuments(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error) {
	reports := make([]domain.ImportReport, len(paths))
	for i, p := range paths {
		doc, err := m.ImportDocument(ctx, p, steps)
		reports[i] = domain.ImportReport{Path: p, Document: doc, Err: err}
	}
	return reports, nil
}

func (m *mockMemory) Preview(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockMemory) ListJobs(_ context.Context, limit int) ([]domain.PipelineJob, error) {
	m.lastLimit = limit
	return m.jobs, m.err
}

func (m *mockMemory) Search(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	m.lastLimit = limit
	return m.results, m.err
}

func (m *mockMemory) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	stream, err := m.AskStream(ctx, question)
	if err != nil {
		return nil, err
	}
	for _, err := range stream.Fragments() {
		if err != nil {
			return nil, err
		}
	}
	return stream.Answer(), nil
}

func (m *mockMemory) AskStream(_ context.Context, question string) (driving.AnswerStream, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &fakeStream{question: question, fragments: m.fragments, sources: m.sources, err: m.streamErr}, nil
}

func (m *mockMemory) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockMemory) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
}

func (m *mockMemory) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockMemory) GetContent(_ context.Context, _ string) (string, error) {
	return "", m.err
}

func (m *mockMemory) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockMemory) Check(_ context.Context) (*domain.CheckReport, error) {
	return &domain.CheckReport{Documents: len(m.docs)}, m.err
}

func (m *mockMemory) Reindex(_ context.Context) (int, error) {
	return 0, m.err
}

// fakeStream replays fixed fragments.
type fakeStream struct {
	question  string
	fragments []string
	sources   []domain.Source
	err       error
	text      strings.Builder
}

func (s *fakeStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			s.text.WriteString(f)
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func (s *fakeStream) Sources() []domain.Source { return s.sources }

func (s *fakeStream) Answer() *domain.Answer {
	text := s.text.String()
	if len(s.fragments) == 0 {
		text = domain.NoAnswer
	}
	return &domain.Answer{Question: s.question, Text: text, Sources: s.sources, Elapsed: 5 * time.Millisecond}
}

func (s *fakeStream) Close() {}
