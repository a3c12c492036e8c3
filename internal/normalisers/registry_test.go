package normalisers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

type stubNormaliser struct {
	name     string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Document: domain.Document{Title: s.name, Content: string(raw.Content)}}, nil
}

func TestRegistry_PicksHighestPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "fallback", types: []string{"text/plain", "text/html"}, priority: 5})
	r.Register(&stubNormaliser{name: "html", types: []string{"text/html"}, priority: 50})

	tests := []struct {
		mime string
		want string
	}{
		{"text/html", "html"},
		{"text/plain", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			res, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: tt.mime, Content: []byte("x")})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Document.Title)
		})
	}
}

func TestRegistry_EqualPriorityFirstWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "first", types: []string{"text/plain"}, priority: 5})
	r.Register(&stubNormaliser{name: "second", types: []string{"text/plain"}, priority: 5})

	res, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/plain"})

	require.NoError(t, err)
	assert.Equal(t, "first", res.Document.Title)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	_, err := r.Normalise(context.Background(), &domain.RawDocument{Path: "/x/photo.png", MIMEType: "image/png"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedType))
	assert.Contains(t, err.Error(), "photo.png")
	assert.False(t, r.Supports("image/png"))
}

func TestRegistry_NilDocument(t *testing.T) {
	_, err := NewRegistry().Normalise(context.Background(), nil)

	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestRegisterDefaults_SupportedTypes(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	types := r.SupportedMIMETypes()
	for _, want := range []string{"text/plain", "text/markdown", "text/html", "application/pdf"} {
		assert.Contains(t, types, want)
	}
	assert.IsNonDecreasing(t, types)
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "text/plain"},
		{"README", "text/plain"},
		{"guide.MD", "text/markdown"},
		{"page.html", "text/html"},
		{"report.pdf", "application/pdf"},
		{"main.ts", "text/typescript"},
		{"letter.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"archive.zzzunknown", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIMEType(tt.path))
		})
	}
}

func TestDefaults_EndToEnd(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	res, err := r.Normalise(context.Background(), &domain.RawDocument{
		Path:     "/docs/guide.md",
		MIMEType: DetectMIMEType("/docs/guide.md"),
		Content:  []byte("# Guide\n\nBring a **passport**."),
	})

	require.NoError(t, err)
	assert.Equal(t, "Guide", res.Document.Title)
	assert.Contains(t, res.Document.Content, "Bring a passport.")
}
