package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view ViewType
		want string
	}{
		{ViewMenu, "menu"},
		{ViewAsk, "ask"},
		{ViewSearch, "search"},
		{ViewHelp, "help"},
		{ViewDocuments, "documents"},
		{ViewDocContent, "doc_content"},
		{ViewDocDetails, "doc_details"},
		{ViewSettings, "settings"},
		{ViewType(99), "unknown"},
		{ViewType(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.view.String())
		})
	}
}

func TestViewType_Distinct(t *testing.T) {
	seen := make(map[ViewType]bool)
	for _, v := range []ViewType{
		ViewMenu, ViewAsk, ViewSearch, ViewHelp,
		ViewDocuments, ViewDocContent, ViewDocDetails, ViewSettings,
	} {
		assert.False(t, seen[v], "duplicate view type %s", v)
		seen[v] = true
	}
}

func TestGoto(t *testing.T) {
	msg := Goto(ViewDocuments)()

	assert.Equal(t, ViewChanged{View: ViewDocuments}, msg)
}

func TestFail(t *testing.T) {
	err := errors.New("store closed")

	msg := Fail(err)()

	assert.Equal(t, ErrorOccurred{Err: err}, msg)
}
