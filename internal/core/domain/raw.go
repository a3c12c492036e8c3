package domain

import (
	"maps"
	"path/filepath"
	"strings"
)

// RawDocument represents the bytes of a file read for ingestion.
// It is the input to normalisation.
type RawDocument struct {
	// Path is the absolute file path.
	Path string

	// MIMEType is the content type detected from the extension (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	Metadata map[string]any
}

// TitleFromPath derives a readable title from the file name, dropping the
// extension and treating underscores and dashes as spaces.
func (r *RawDocument) TitleFromPath() string {
	name := filepath.Base(r.Path)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.Join(strings.FieldsFunc(name, func(c rune) bool {
		return c == '_' || c == '-' || c == ' '
	}), " ")
}

// MetadataTitle returns a caller-supplied "title" entry, if any.
func (r *RawDocument) MetadataTitle() string {
	title, _ := r.Metadata["title"].(string)
	return strings.TrimSpace(title)
}

// NormalisedMetadata copies the caller metadata and records the format
// the normaliser recognised.
func (r *RawDocument) NormalisedMetadata(format string) map[string]any {
	md := maps.Clone(r.Metadata)
	if md == nil {
		md = make(map[string]any, 1)
	}
	md["format"] = format
	return md
}
