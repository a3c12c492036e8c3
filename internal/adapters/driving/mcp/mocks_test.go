package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results   []domain.SearchResult
	answer    *domain.Answer
	err       error
	lastLimit int
}

func (m *mockQueryService) Search(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	m.lastLimit = limit
	return m.results, m.err
}

func (m *mockQueryService) Ask(_ context.Context, question string) (*domain.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.answer == nil {
		return &domain.Answer{Question: question, Text: domain.NoAnswer}, nil
	}
	return m.answer, nil
}

func (m *mockQueryService) AskStream(_ context.Context, _ string) (driving.AnswerStream, error) {
	return nil, fmt.Errorf("%w: not streamed over MCP", domain.ErrInvalidArgument)
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	err   error
	path  string
	steps []domain.Step
}

func (m *mockIngestService) ImportDocument(_ context.Context, path string, steps []domain.Step) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.path = path
	m.steps = steps
	return &domain.Document{ID: "doc-1", Title: "notes", Path: path, Status: domain.StatusIndexed, ChunkCount: 3}, nil
}

func (m *mockIngestService) ImportDocuments(_ context.Context, _ []string, _ []domain.Step) ([]domain.ImportReport, error) {
	return nil, m.err
}

func (m *mockIngestService) Preview(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockIngestService) ListJobs(_ context.Context, _ int) ([]domain.PipelineJob, error) {
	return nil, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	content   map[string]string
	chunks    map[string][]domain.Chunk
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetChunks(_ context.Context, id string) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	chunks, ok := m.chunks[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return chunks, nil
}

func (m *mockDocumentService) GetContent(_ context.Context, id string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	content, ok := m.content[id]
	if !ok {
		return "", fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return content, nil
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) Check(_ context.Context) (*domain.CheckReport, error) {
	return &domain.CheckReport{}, m.err
}

func (m *mockDocumentService) Reindex(_ context.Context) (int, error) {
	return 0, m.err
}
