package messages

import (
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// SearchCompleted carries the hits of search number Session.
type SearchCompleted struct {
	Session int
	Results []domain.SearchResult
	Err     error
}

// AnswerStarted arrives once retrieval is done and the stream is open.
// Session numbers each question; messages for an older session are stale.
type AnswerStarted struct {
	Session int
	Stream  driving.AnswerStream
	Err     error
}

type AnswerFragment struct {
	Session int
	Text    string
}

// AnswerCompleted arrives after the last fragment, or with the stream error.
type AnswerCompleted struct {
	Session int
	Answer  *domain.Answer
	Err     error
}
