package list

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Document: domain.Document{ID: "aaaaaaaaaaaaaaaa", Title: "Vector Stores", Path: "/notes/vectors.md"},
			Chunk:    domain.Chunk{Content: "Embeddings are\nstored   on disk."},
			Score:    0.91,
		},
		{
			Document: domain.Document{ID: "bbbbbbbbbbbbbbbb", Path: "/notes/untitled.txt"},
			Score:    0.72,
		},
		{
			Document: domain.Document{ID: "cccccccccccccccc", Title: "Chunking", Path: "/notes/chunking.md"},
			Score:    0.55,
		},
	}
}

func TestResultList_Empty(t *testing.T) {
	l := New(nil, nil)

	require.NotNil(t, l.styles)
	assert.True(t, l.IsEmpty())
	assert.Nil(t, l.SelectedResult())
	assert.Contains(t, l.View(), "No results")
}

func TestResultList_Navigation(t *testing.T) {
	l := New(nil, nil)
	l.SetResults(sampleResults())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 1, l.Selected())
	assert.Equal(t, "bbbbbbbbbbbbbbbb", l.SelectedResult().Document.ID)

	l.SetSelected(7)
	assert.Equal(t, 1, l.Selected())

	l.SetResults(sampleResults()[:1])
	assert.Equal(t, 0, l.Selected())
	assert.Equal(t, 1, l.Count())
}

func TestResultList_View(t *testing.T) {
	l := New(nil, nil)
	l.SetDimensions(100, 40)
	l.SetResults(sampleResults())

	view := l.View()

	assert.Contains(t, view, "Results (3)")
	assert.Contains(t, view, "Vector Stores")
	assert.Contains(t, view, "0.91")
	assert.Contains(t, view, "/notes/vectors.md")
	assert.Contains(t, view, "Embeddings are stored on disk.")
	assert.Contains(t, view, domain.ShortID("bbbbbbbbbbbbbbbb"), "untitled documents show their short ID")
}

func TestResultList_ViewScrollsToSelection(t *testing.T) {
	l := New(nil, nil)
	l.SetDimensions(100, 7) // room for one result
	l.SetResults(sampleResults())
	l.SetSelected(2)

	view := l.View()

	assert.Contains(t, view, "Chunking")
	assert.NotContains(t, view, "Vector Stores")

	l.SetSelected(1)
	view = l.View()
	assert.Contains(t, view, domain.ShortID("bbbbbbbbbbbbbbbb"))
	assert.Contains(t, view, "1 more below")
}

func TestResultList_MoveDownOnEmptyList(t *testing.T) {
	l := New(nil, nil)

	l.MoveDown()

	assert.Equal(t, 0, l.Selected())
	assert.Nil(t, l.SelectedResult())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdef…", truncate("abcdefghij", 7))
	assert.Empty(t, truncate("abc", 0))
	assert.Equal(t, 7, len([]rune(truncate(strings.Repeat("é", 20), 7))))
}
