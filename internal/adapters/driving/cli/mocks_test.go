package cli

import (
	"bytes"
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// MockMemoryService implements driving.MemoryService for CLI tests.
type MockMemoryService struct {
	ImportDocumentFunc  func(ctx context.Context, path string, steps []domain.Step) (*domain.Document, error)
	ImportDocumentsFunc func(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error)
	PreviewFunc         func(ctx context.Context, path string) ([]domain.Chunk, error)
	ListJobsFunc        func(ctx context.Context, limit int) ([]domain.PipelineJob, error)
	SearchFunc          func(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	AskFunc             func(ctx context.Context, question string) (*domain.Answer, error)
	AskStreamFunc       func(ctx context.Context, question string) (driving.AnswerStream, error)
	ListFunc            func(ctx context.Context) ([]domain.Document, error)
	GetFunc             func(ctx context.Context, id string) (*domain.Document, error)
	GetChunksFunc       func(ctx context.Context, id string) ([]domain.Chunk, error)
	GetContentFunc      func(ctx context.Context, id string) (string, error)
	DeleteFunc          func(ctx context.Context, id string) error
	CheckFunc           func(ctx context.Context) (*domain.CheckReport, error)
	ReindexFunc         func(ctx context.Context) (int, error)
}

func (m *MockMemoryService) ImportDocument(ctx context.Context, path string, steps []domain.Step) (*domain.Document, error) {
	if m.ImportDocumentFunc != nil {
		return m.ImportDocumentFunc(ctx, path, steps)
	}
	return &domain.Document{ID: "doc-" + path, Path: path, Status: domain.StatusIndexed}, nil
}

func (m *MockMemoryService) ImportDocuments(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error) {
	if m.ImportDocumentsFunc != nil {
		return m.ImportDocumentsFunc(ctx, paths, steps)
	}
	reports := make([]domain.ImportReport, len(paths))
	for i, p := range paths {
		doc, err := m.ImportDocument(ctx, p, steps)
		reports[i] = domain.ImportReport{Path: p, Document: doc, Err: err}
	}
	return reports, nil
}

func (m *MockMemoryService) Preview(ctx context.Context, path string) ([]domain.Chunk, error) {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(ctx, path)
	}
	return nil, nil
}

func (m *MockMemoryService) ListJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error) {
	if m.ListJobsFunc != nil {
		return m.ListJobsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockMemoryService) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockMemoryService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	if m.AskFunc != nil {
		return m.AskFunc(ctx, question)
	}
	return &domain.Answer{Question: question, Text: domain.NoAnswer}, nil
}

func (m *MockMemoryService) AskStream(ctx context.Context, question string) (driving.AnswerStream, error) {
	if m.AskStreamFunc != nil {
		return m.AskStreamFunc(ctx, question)
	}
	return &fakeStream{answer: domain.Answer{Question: question, Text: domain.NoAnswer}}, nil
}

func (m *MockMemoryService) List(ctx context.Context) ([]domain.Document, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockMemoryService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockMemoryService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if m.GetChunksFunc != nil {
		return m.GetChunksFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockMemoryService) GetContent(ctx context.Context, id string) (string, error) {
	if m.GetContentFunc != nil {
		return m.GetContentFunc(ctx, id)
	}
	return "", nil
}

func (m *MockMemoryService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockMemoryService) Check(ctx context.Context) (*domain.CheckReport, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}
	return &domain.CheckReport{}, nil
}

func (m *MockMemoryService) Reindex(ctx context.Context) (int, error) {
	if m.ReindexFunc != nil {
		return m.ReindexFunc(ctx)
	}
	return 0, nil
}

// fakeStream yields fragments, then optionally fails.
type fakeStream struct {
	fragments []string
	err       error
	answer    domain.Answer
	closed    bool
}

func (f *fakeStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, s := range f.fragments {
			if !yield(s, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeStream) Sources() []domain.Source { return f.answer.Sources }

func (f *fakeStream) Answer() *domain.Answer { return &f.answer }

func (f *fakeStream) Close() { f.closed = true }

// MockSettingsService implements driving.SettingsService for CLI tests.
type MockSettingsService struct {
	Settings *domain.AppSettings
	GetErr   error
	SetErr   error
	Values   map[string]string
	Order    []string
	Checks   []domain.ProviderCheck
	TestErr  error
}

func (m *MockSettingsService) Get() (*domain.AppSettings, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Settings == nil {
		s := domain.DefaultAppSettings()
		return &s, nil
	}
	return m.Settings, nil
}

func (m *MockSettingsService) Set(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	m.Order = append(m.Order, key)
	return nil
}

func (m *MockSettingsService) Keys() []string {
	return []string{"embedding.model", "embedding.provider", "search.max_matches"}
}

func (m *MockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *MockSettingsService) Path() string { return "/home/test/.ragmem/config.toml" }

func (m *MockSettingsService) TestProviders(context.Context) ([]domain.ProviderCheck, error) {
	return m.Checks, m.TestErr
}

// execute runs the root command with the given services, stdin and arguments.
// Command state is restored when the test ends.
func execute(t *testing.T, memory driving.MemoryService, settings driving.SettingsService,
	stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetCommandState)

	memoryService = memory
	settingsService = settings

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func resetCommandState() {
	memoryService = nil
	settingsService = nil
	opener = nil
	opened = nil
	rootCmd.SetArgs(nil)
	rootCmd.SetIn(nil)
	resetFlags(rootCmd)
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
