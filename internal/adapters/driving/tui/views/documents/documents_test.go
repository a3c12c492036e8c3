package documents

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// mockDocumentService implements driving.DocumentService for testing.
type mockDocumentService struct {
	docs    []domain.Document
	chunks  []domain.Chunk
	listErr error
	getErr  error
	delErr  error
	deleted []string
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	return m.docs, m.listErr
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetChunks(context.Context, string) ([]domain.Chunk, error) {
	return m.chunks, nil
}

func (m *mockDocumentService) GetContent(context.Context, string) (string, error) {
	return "", nil
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.delErr != nil {
		return m.delErr
	}
	m.deleted = append(m.deleted, id)
	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	m.docs = kept
	return nil
}

func (m *mockDocumentService) Check(context.Context) (*domain.CheckReport, error) {
	return &domain.CheckReport{}, nil
}

func (m *mockDocumentService) Reindex(context.Context) (int, error) {
	return 0, nil
}

func testDocs() []domain.Document {
	return []domain.Document{
		{ID: "0123456789abcdef", Title: "Architecture", Path: "/docs/architecture.md", Status: domain.StatusIndexed, ChunkCount: 4},
		{ID: "fedcba9876543210", Path: "/docs/broken.pdf", Status: domain.StatusFailed},
	}
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func loadedView(t *testing.T, svc *mockDocumentService) *View {
	t.Helper()
	v := NewView(nil, nil, svc)
	v.SetDimensions(120, 30)
	cmd := v.Load()
	require.NotNil(t, cmd)
	v.Update(cmd())
	return v
}

func TestView_LoadAndRender(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	require.Len(t, v.Documents(), 2)
	out := v.View()
	assert.Contains(t, out, "Documents (2)")
	assert.Contains(t, out, "Architecture")
	assert.Contains(t, out, "fedcba987654", "untitled documents show their short ID")
	assert.Contains(t, out, "failed")
}

func TestView_EmptyAndError(t *testing.T) {
	v := loadedView(t, &mockDocumentService{})
	assert.Contains(t, v.View(), "No documents imported yet")

	v = loadedView(t, &mockDocumentService{listErr: errors.New("store locked")})
	assert.Contains(t, v.View(), "Error: store locked")

	v = NewView(nil, nil, nil)
	v.Update(v.Load()())
	assert.ErrorIs(t, v.Err(), ErrNoDocumentService)
}

func TestView_ShowContent(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	v.Update(press("j"))
	v.Update(press("enter"))
	require.True(t, v.IsShowingMenu())

	_, cmd := v.Update(press("enter"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.DocumentSelected)
	require.True(t, ok)
	assert.Equal(t, "fedcba9876543210", msg.Document.ID)
	assert.False(t, v.IsShowingMenu())
}

func TestView_ShowDetails(t *testing.T) {
	svc := &mockDocumentService{
		docs:   testDocs(),
		chunks: []domain.Chunk{{ID: "0123456789abcdef-0", Content: "intro"}},
	}
	v := loadedView(t, svc)

	v.Update(press("enter"))
	v.Update(press("j"))
	_, cmd := v.Update(press("enter"))
	require.NotNil(t, cmd)

	msg, ok := cmd().(messages.DocumentDetailsLoaded)
	require.True(t, ok)
	require.NoError(t, msg.Err)
	assert.Equal(t, "Architecture", msg.Document.Title)
	assert.Len(t, msg.Chunks, 1)
}

func TestView_DeleteNeedsConfirmation(t *testing.T) {
	svc := &mockDocumentService{docs: testDocs()}
	v := loadedView(t, svc)

	v.Update(press("enter"))
	v.Update(press("j"))
	v.Update(press("j"))

	_, cmd := v.Update(press("enter"))
	assert.Nil(t, cmd)
	assert.Contains(t, v.View(), "press enter again to confirm")
	assert.Empty(t, svc.deleted)

	_, cmd = v.Update(press("enter"))
	require.NotNil(t, cmd)
	deleted := cmd()
	assert.Equal(t, []string{"0123456789abcdef"}, svc.deleted)

	_, reload := v.Update(deleted)
	require.NotNil(t, reload)
	v.Update(reload())

	assert.Len(t, v.Documents(), 1)
	assert.Contains(t, v.View(), "Document 0123456789ab deleted.")
}

func TestView_DeleteError(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	v.Update(messages.DocumentDeleted{DocumentID: "x", Err: domain.ErrNotFound})

	assert.ErrorIs(t, v.Err(), domain.ErrNotFound)
}

func TestView_MenuCancel(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	v.Update(press("enter"))
	v.Update(press("esc"))
	assert.False(t, v.IsShowingMenu())

	v.Update(press("enter"))
	for range 5 {
		v.Update(press("j"))
	}
	_, cmd := v.Update(press("enter"))
	assert.Nil(t, cmd)
	assert.False(t, v.IsShowingMenu())
}

func TestView_NavigationAndBack(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	v.Update(press("k"))
	assert.Equal(t, 0, v.SelectedIndex())
	v.Update(press("j"))
	v.Update(press("j"))
	assert.Equal(t, 1, v.SelectedIndex())

	_, cmd := v.Update(press("r"))
	require.NotNil(t, cmd)
	assert.IsType(t, messages.DocumentsLoaded{}, cmd())

	_, cmd = v.Update(press("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_SelectionClampedAfterReload(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})
	v.Update(press("j"))

	v.Update(messages.DocumentsLoaded{Documents: testDocs()[:1]})

	assert.Equal(t, 0, v.SelectedIndex())
}

func TestView_DeleteShortcut(t *testing.T) {
	svc := &mockDocumentService{docs: testDocs()}
	v := loadedView(t, svc)

	v.Update(press("d"))
	require.True(t, v.IsShowingMenu())
	assert.Contains(t, v.View(), "> Delete")

	_, cmd := v.Update(press("enter"))
	assert.Nil(t, cmd)
	_, cmd = v.Update(press("enter"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"0123456789abcdef"}, svc.deleted)
}

func TestView_MovingOffDeleteDisarms(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	v.Update(press("d"))
	v.Update(press("enter"))
	require.Contains(t, v.View(), "press enter again")

	v.Update(press("k"))
	v.Update(press("j"))

	assert.NotContains(t, v.View(), "press enter again")
}

func TestView_TableColumns(t *testing.T) {
	v := loadedView(t, &mockDocumentService{docs: testDocs()})

	out := v.View()

	for _, col := range []string{"Title", "Status", "Chunks", "Path"} {
		assert.Contains(t, out, col)
	}
	assert.Contains(t, out, "/docs/architecture.md")
}
