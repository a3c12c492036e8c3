package tui

import (
	"context"
	"iter"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	SearchFunc    func(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	AskStreamFunc func(ctx context.Context, question string) (driving.AnswerStream, error)
}

func (m *MockQueryService) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockQueryService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	stream, err := m.AskStream(ctx, question)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	for _, err := range stream.Fragments() {
		if err != nil {
			return nil, err
		}
	}
	return stream.Answer(), nil
}

func (m *MockQueryService) AskStream(ctx context.Context, question string) (driving.AnswerStream, error) {
	if m.AskStreamFunc != nil {
		return m.AskStreamFunc(ctx, question)
	}
	return &MockAnswerStream{Text: domain.NoAnswer}, nil
}

// MockAnswerStream yields its text as a single fragment.
type MockAnswerStream struct {
	Text    string
	Refs    []domain.Source
	Closed  bool
}

func (m *MockAnswerStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(m.Text, nil)
	}
}

func (m *MockAnswerStream) Sources() []domain.Source { return m.Refs }

func (m *MockAnswerStream) Answer() *domain.Answer {
	return &domain.Answer{Text: m.Text, Sources: m.Refs}
}

func (m *MockAnswerStream) Close() { m.Closed = true }

// MockDocumentService implements driving.DocumentService for testing.
type MockDocumentService struct {
	ListFunc       func(ctx context.Context) ([]domain.Document, error)
	GetFunc        func(ctx context.Context, id string) (*domain.Document, error)
	GetChunksFunc  func(ctx context.Context, id string) ([]domain.Chunk, error)
	GetContentFunc func(ctx context.Context, id string) (string, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockDocumentService) List(ctx context.Context) ([]domain.Document, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockDocumentService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if m.GetChunksFunc != nil {
		return m.GetChunksFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockDocumentService) GetContent(ctx context.Context, id string) (string, error) {
	if m.GetContentFunc != nil {
		return m.GetContentFunc(ctx, id)
	}
	return "", nil
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockDocumentService) Check(context.Context) (*domain.CheckReport, error) {
	return &domain.CheckReport{}, nil
}

func (m *MockDocumentService) Reindex(context.Context) (int, error) {
	return 0, nil
}

// MockMemoryService implements driving.MemoryService for testing.
type MockMemoryService struct {
	MockQueryService
	MockDocumentService
}

func (m *MockMemoryService) ImportDocument(context.Context, string, []domain.Step) (*domain.Document, error) {
	return nil, nil
}

func (m *MockMemoryService) ImportDocuments(context.Context, []string, []domain.Step) ([]domain.ImportReport, error) {
	return nil, nil
}

func (m *MockMemoryService) Preview(context.Context, string) ([]domain.Chunk, error) {
	return nil, nil
}

func (m *MockMemoryService) ListJobs(context.Context, int) ([]domain.PipelineJob, error) {
	return nil, nil
}

// MockSettingsService implements driving.SettingsService for testing.
type MockSettingsService struct {
	Settings *domain.AppSettings
	Values   map[string]string
}

func (m *MockSettingsService) Get() (*domain.AppSettings, error) {
	if m.Settings == nil {
		s := domain.DefaultAppSettings()
		return &s, nil
	}
	return m.Settings, nil
}

func (m *MockSettingsService) Set(key, value string) error {
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	return nil
}

func (m *MockSettingsService) Keys() []string { return nil }

func (m *MockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *MockSettingsService) Path() string { return "/tmp/ragmem/config.toml" }

func (m *MockSettingsService) TestProviders(context.Context) ([]domain.ProviderCheck, error) {
	return nil, nil
}
