package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

func streamingMemory(stream *fakeStream, asked *[]string) *MockMemoryService {
	return &MockMemoryService{
		AskStreamFunc: func(_ context.Context, q string) (driving.AnswerStream, error) {
			if asked != nil {
				*asked = append(*asked, q)
			}
			return stream, nil
		},
	}
}

func passportStream() *fakeStream {
	return &fakeStream{
		fragments: []string{"Bring your ", "passport."},
		answer: domain.Answer{
			Question: "what to bring",
			Text:     "Bring your passport.",
			Sources:  []domain.Source{{DocumentID: "d1", Path: "/docs/travel.pdf"}},
			Elapsed:  1234 * time.Millisecond,
		},
	}
}

func withTerminal(t *testing.T, isTerminal bool) {
	t.Helper()
	prev := stdoutIsTerminal
	stdoutIsTerminal = func() bool { return isTerminal }
	t.Cleanup(func() { stdoutIsTerminal = prev })
}

func TestAsk_PrintsAnswer(t *testing.T) {
	withTerminal(t, false)
	stream := passportStream()
	var asked []string

	out, err := execute(t, streamingMemory(stream, &asked), nil, "", "ask", "what", "to", "bring")
	require.NoError(t, err)

	assert.Equal(t, []string{"what to bring"}, asked)
	assert.Equal(t, "Answer: Bring your passport.\nSource: /docs/travel.pdf\nAnswer generated in 1.234s\n\n", out)
	assert.True(t, stream.closed)
}

func TestAsk_StreamsOnTerminal(t *testing.T) {
	withTerminal(t, true)

	out, err := execute(t, streamingMemory(passportStream(), nil), nil, "", "ask", "what to bring")
	require.NoError(t, err)

	assert.Contains(t, out, "Bring your passport.\nAnswer: Bring your passport.\n")
}

func TestAsk_StreamError(t *testing.T) {
	withTerminal(t, true)
	stream := passportStream()
	stream.err = domain.ErrGenerationUnavailable

	out, err := execute(t, streamingMemory(stream, nil), nil, "", "ask", "q")

	require.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Contains(t, out, "Bring your passport.\n")
	assert.NotContains(t, out, "Answer:")
	assert.True(t, stream.closed)
}

func TestAsk_StartError(t *testing.T) {
	memory := &MockMemoryService{
		AskStreamFunc: func(context.Context, string) (driving.AnswerStream, error) {
			return nil, domain.ErrEmbeddingUnavailable
		},
	}

	_, err := execute(t, memory, nil, "", "ask", "q")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "ask failed")
}

func TestAsk_JSON(t *testing.T) {
	tests := []struct {
		name      string
		answer    *domain.Answer
		wantFound bool
	}{
		{
			name: "answered",
			answer: &domain.Answer{
				Question: "q", Text: "Yes.", Elapsed: 20 * time.Millisecond,
				Sources: []domain.Source{{DocumentID: "d1", Path: "/a.md"}},
			},
			wantFound: true,
		},
		{
			name:   "not found",
			answer: &domain.Answer{Question: "q", Text: domain.NoAnswer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := &MockMemoryService{
				AskFunc: func(context.Context, string) (*domain.Answer, error) { return tt.answer, nil },
			}

			out, err := execute(t, memory, nil, "", "ask", "--json", "q")
			require.NoError(t, err)

			var got answerJSON
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.answer.Text, got.Answer)
			assert.Equal(t, tt.wantFound, got.Found)
			assert.NotNil(t, got.Sources)
			assert.Equal(t, tt.answer.Elapsed.Milliseconds(), got.ElapsedMS)
		})
	}
}

func TestAsk_JSONError(t *testing.T) {
	memory := &MockMemoryService{
		AskFunc: func(context.Context, string) (*domain.Answer, error) { return nil, errors.New("boom") },
	}

	_, err := execute(t, memory, nil, "", "ask", "--json", "q")

	require.EqualError(t, err, "ask failed: boom")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := execute(t, &MockMemoryService{}, nil, "", "ask")
	require.Error(t, err)
}

func TestChat_LoopsUntilEmptyQuestion(t *testing.T) {
	var asked []string
	memory := &MockMemoryService{
		AskStreamFunc: func(_ context.Context, q string) (driving.AnswerStream, error) {
			asked = append(asked, q)
			return passportStream(), nil
		},
	}

	out, err := execute(t, memory, nil, "what to bring\n\n", "chat", "is it cold?")
	require.NoError(t, err)

	assert.Equal(t, []string{"is it cold?", "what to bring"}, asked)
	assert.Contains(t, out, "Question: is it cold?\n")
	assert.Contains(t, out, "Bring your passport.\nAnswer: Bring your passport.\n")
	assert.Contains(t, out, "Source: /docs/travel.pdf")
}

func TestChat_EmptyFirstQuestionExits(t *testing.T) {
	var asked []string

	out, err := execute(t, streamingMemory(passportStream(), &asked), nil, "\n", "chat")
	require.NoError(t, err)

	assert.Empty(t, asked)
	assert.Equal(t, "Question: ", out)
}

func TestChat_ContinuesAfterError(t *testing.T) {
	var asked []string
	memory := &MockMemoryService{
		AskStreamFunc: func(_ context.Context, q string) (driving.AnswerStream, error) {
			asked = append(asked, q)
			if q == "first" {
				return nil, domain.ErrGenerationUnavailable
			}
			return passportStream(), nil
		},
	}

	out, err := execute(t, memory, nil, "again\n\n", "chat", "first")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "again"}, asked)
	assert.Contains(t, out, "Error: ask failed: "+domain.ErrGenerationUnavailable.Error())
	assert.Contains(t, out, "Answer: Bring your passport.\n")
}
