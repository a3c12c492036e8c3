package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

func chatServer(t *testing.T, deltas ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if stream, _ := req["stream"].(bool); !stream {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"full text"},"finish_reason":"stop"}]}`))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			b, _ := json.Marshal(d)
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%s}}]}\n\n", b)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewGenerationService_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationService(Config{})

	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestGenerate_Streams(t *testing.T) {
	srv := chatServer(t, "Passport", " and photo.")
	svc, err := NewGenerationService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	stream, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{StopWords: []string{"\n\n"}})
	require.NoError(t, err)

	text, err := driven.CollectFragments(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, "Passport and photo.", text)
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	svc, err := NewGenerationService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "q", driven.GenerateOptions{})
	assert.True(t, errors.Is(err, domain.ErrGenerationService))

	_, err = svc.GenerateComplete(context.Background(), "q", driven.GenerateOptions{})
	assert.True(t, errors.Is(err, domain.ErrGenerationService))
}

func TestGenerateComplete(t *testing.T) {
	srv := chatServer(t)
	svc, err := NewGenerationService(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)

	text, err := svc.GenerateComplete(context.Background(), "q", driven.GenerateOptions{MaxTokens: 10})

	require.NoError(t, err)
	assert.Equal(t, "full text", text)
	assert.Equal(t, "gpt-test", svc.ModelName())
}
