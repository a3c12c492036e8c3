package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawDocument_TitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/b/notes.txt", "notes"},
		{"/a/b/README", "README"},
		{"/a/.env", ".env"},
		{"report.final.txt", "report.final"},
		{"/docs/my_document.pdf", "my document"},
		{"/docs/entry--requirements.htm", "entry requirements"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			raw := &RawDocument{Path: tt.path}
			assert.Equal(t, tt.want, raw.TitleFromPath())
		})
	}
}

func TestRawDocument_MetadataTitle(t *testing.T) {
	assert.Empty(t, (&RawDocument{}).MetadataTitle())
	assert.Empty(t, (&RawDocument{Metadata: map[string]any{"title": 7}}).MetadataTitle())
	assert.Equal(t, "Guide", (&RawDocument{Metadata: map[string]any{"title": " Guide "}}).MetadataTitle())
}

func TestRawDocument_NormalisedMetadata(t *testing.T) {
	raw := &RawDocument{Metadata: map[string]any{"origin": "cli"}}

	md := raw.NormalisedMetadata("text")

	assert.Equal(t, map[string]any{"origin": "cli", "format": "text"}, md)
	assert.NotContains(t, raw.Metadata, "format")
	assert.Equal(t, map[string]any{"format": "pdf"}, (&RawDocument{}).NormalisedMetadata("pdf"))
}
