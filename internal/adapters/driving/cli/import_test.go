package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o600))
	}
}

// pdfUnsupported imports everything except PDFs.
func pdfUnsupported() *MockMemoryService {
	return &MockMemoryService{
		ImportDocumentFunc: func(_ context.Context, path string, _ []domain.Step) (*domain.Document, error) {
			if strings.HasSuffix(path, ".pdf") {
				return nil, domain.ErrUnsupportedType
			}
			return &domain.Document{ID: "0123456789abcdef", Path: path, ChunkCount: 2}, nil
		},
	}
}

func TestImport_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "notes.md")
	path := filepath.Join(dir, "notes.md")

	var gotSteps []domain.Step
	memory := pdfUnsupported()
	inner := memory.ImportDocumentFunc
	memory.ImportDocumentFunc = func(ctx context.Context, p string, steps []domain.Step) (*domain.Document, error) {
		gotSteps = steps
		return inner(ctx, p, steps)
	}

	out, err := execute(t, memory, nil, "", "import", path)
	require.NoError(t, err)

	assert.Nil(t, gotSteps, "the default pipeline is chosen by the service")
	assert.Contains(t, out, "Importing 1 of 1: "+path)
	assert.Contains(t, out, "  imported   "+path+" (0123456789ab, 2 chunks)")
	assert.Contains(t, out, "1 imported, 0 unchanged, 0 ignored, 0 failed")
	assert.Contains(t, out, "Completed in ")
}

func TestImport_DirectoryIgnoresHiddenAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", "b.txt", ".hidden.md", ".git/config", "sub/c.pdf", "sub/d.md")

	var got []string
	memory := pdfUnsupported()
	memory.ImportDocumentsFunc = func(ctx context.Context, paths []string, steps []domain.Step) ([]domain.ImportReport, error) {
		got = append(got, paths...)
		reports := make([]domain.ImportReport, len(paths))
		for i, p := range paths {
			doc, err := memory.ImportDocument(ctx, p, steps)
			reports[i] = domain.ImportReport{Path: p, Document: doc, Err: err}
		}
		return reports, nil
	}

	out, err := execute(t, memory, nil, "", "import", dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.md"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "sub", "c.pdf"),
		filepath.Join(dir, "sub", "d.md"),
	}, got)
	assert.Contains(t, out, "Importing 4 documents")
	assert.Contains(t, out, "  ignored    "+filepath.Join(dir, "sub", "c.pdf")+" (unsupported type)")
	assert.Contains(t, out, "3 imported, 0 unchanged, 1 ignored, 0 failed")
}

func TestImport_ExplicitUnsupportedFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "scan.pdf")

	out, err := execute(t, pdfUnsupported(), nil, "", "import", filepath.Join(dir, "scan.pdf"))

	require.EqualError(t, err, "1 of 1 documents failed")
	assert.Contains(t, out, "  failed     ")
	assert.Contains(t, out, "unsupported type")
}

func TestImport_ReportsUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", "b.md")
	memory := &MockMemoryService{
		ImportDocumentsFunc: func(_ context.Context, paths []string, _ []domain.Step) ([]domain.ImportReport, error) {
			reports := make([]domain.ImportReport, len(paths))
			for i, p := range paths {
				reports[i] = domain.ImportReport{Path: p, Skipped: true}
			}
			return reports, nil
		},
	}

	out, err := execute(t, memory, nil, "", "import", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "  unchanged  "+filepath.Join(dir, "a.md"))
	assert.Contains(t, out, "0 imported, 2 unchanged, 0 ignored, 0 failed")
}

func TestImport_OneWorkerRunsSequentially(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", "b.md")
	memory := pdfUnsupported()
	memory.ImportDocumentsFunc = func(context.Context, []string, []domain.Step) ([]domain.ImportReport, error) {
		t.Fatal("parallel import used")
		return nil, nil
	}

	out, err := execute(t, memory, nil, "", "import", "-w", "1", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Importing 1 of 2: ")
	assert.Contains(t, out, "Importing 2 of 2: ")
}

func TestImport_Steps(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md")
	var gotSteps []domain.Step
	memory := &MockMemoryService{
		ImportDocumentFunc: func(_ context.Context, path string, steps []domain.Step) (*domain.Document, error) {
			gotSteps = steps
			return &domain.Document{ID: "x", Path: path}, nil
		},
	}

	_, err := execute(t, memory, nil, "", "import", "--steps", "embed,partition", "--with-summary", filepath.Join(dir, "a.md"))
	require.NoError(t, err)

	assert.Equal(t, []domain.Step{domain.StepPartition, domain.StepSummarize, domain.StepEmbed}, gotSteps)
}

func TestImport_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := execute(t, &MockMemoryService{}, nil, "", "import", filepath.Join(t.TempDir(), "missing.md"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad steps", func(t *testing.T) {
		_, err := execute(t, &MockMemoryService{}, nil, "", "import", "--steps", "index", t.TempDir())
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("empty directory", func(t *testing.T) {
		out, err := execute(t, &MockMemoryService{}, nil, "", "import", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "No files to import.\n", out)
	})
}

func TestParseImportSteps(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		withSummary bool
		want        []domain.Step
		wantErr     bool
	}{
		{name: "default", raw: "", want: nil},
		{name: "default with summary", raw: " ", withSummary: true, want: domain.PipelineWithSummary()},
		{name: "explicit", raw: "index, embed ,partition", want: domain.PipelineWithoutSummary()},
		{name: "partition only", raw: "partition", want: []domain.Step{domain.StepPartition}},
		{
			name: "summary added", raw: "partition", withSummary: true,
			want: []domain.Step{domain.StepPartition, domain.StepSummarize},
		},
		{name: "unknown", raw: "partition,ocr", wantErr: true},
		{name: "missing dependency", raw: "embed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseImportSteps(tt.raw, tt.withSummary)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", ".secret", "nested/b.md", ".cache/c.md")
	single := filepath.Join(dir, "a.md")

	set, err := expandPaths([]string{dir, single})
	require.NoError(t, err)

	assert.Equal(t, []string{single, filepath.Join(dir, "nested", "b.md")}, set.paths)
	assert.True(t, set.walked[single], "a file reached by walking stays marked as walked")
}
