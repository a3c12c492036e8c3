package messages

import "github.com/custodia-labs/ragmem/internal/core/domain"

type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected opens a document from a list or a search hit.
type DocumentSelected struct {
	Document domain.Document
}

type DocumentContentLoaded struct {
	DocumentID string
	Content    string
	Err        error
}

type DocumentDetailsLoaded struct {
	Document *domain.Document
	Chunks   []domain.Chunk
	Err      error
}

// DocumentDeleted follows a delete; on success the lists reload.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}

type SettingsSaved struct {
	Err error
}
