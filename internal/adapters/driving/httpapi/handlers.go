package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

const defaultSearchLimit = 10

type handlers struct {
	memory driving.MemoryService
}

// AskRequest is the body of POST /ask and POST /ask/stream.
type AskRequest struct {
	Question string `json:"question"`
}

// AnswerResponse is a completed answer.
type AnswerResponse struct {
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Found     bool            `json:"found"`
	Sources   []domain.Source `json:"sources"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResultResponse is one retrieved chunk.
type SearchResultResponse struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ImportRequest is the body of POST /documents.
type ImportRequest struct {
	Path  string   `json:"path"`
	Steps []string `json:"steps,omitempty"`
}

func newAnswerResponse(a *domain.Answer) AnswerResponse {
	sources := a.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return AnswerResponse{
		Question:  a.Question,
		Answer:    a.Text,
		Found:     a.HasAnswer(),
		Sources:   sources,
		ElapsedMS: a.Elapsed.Milliseconds(),
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.memory.Ask(r.Context(), req.Question)
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, newAnswerResponse(answer))
}

// askStream answers as Server-Sent Events: one "sources" event, a
// "fragment" event per generated piece of text, then "done" with the full
// answer or "error".
func (h *handlers) askStream(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := h.memory.AskStream(r.Context(), req.Question)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			payload = []byte(`{}`)
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}

	sources := stream.Sources()
	if sources == nil {
		sources = []domain.Source{}
	}
	send("sources", sources)
	for text, err := range stream.Fragments() {
		if err != nil {
			send("error", ErrorResponse{Error: err.Error()})
			return
		}
		send("fragment", map[string]string{"text": text})
	}
	if r.Context().Err() != nil {
		return
	}
	send("done", newAnswerResponse(stream.Answer()))
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		Error(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := h.memory.Search(r.Context(), req.Query, limit)
	if err != nil {
		HandleError(w, err)
		return
	}

	out := make([]SearchResultResponse, len(results))
	for i, res := range results {
		out[i] = SearchResultResponse{
			DocumentID: res.Document.ID,
			ChunkID:    res.Chunk.ID,
			Path:       res.Document.Path,
			Title:      res.Document.Title,
			Content:    res.Chunk.Content,
			Score:      res.Score,
		}
	}
	Success(w, http.StatusOK, map[string]any{"results": out})
}

func (h *handlers) importDocument(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		Error(w, http.StatusBadRequest, "path is required")
		return
	}
	steps, err := domain.ParseSteps(strings.Join(req.Steps, ","))
	if err != nil {
		HandleError(w, err)
		return
	}

	doc, err := h.memory.ImportDocument(r.Context(), req.Path, steps)
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusCreated, doc)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.memory.List(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	Success(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.memory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, doc)
}

func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.memory.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := h.memory.ListJobs(r.Context(), limit)
	if err != nil {
		HandleError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.PipelineJob{}
	}
	Success(w, http.StatusOK, map[string]any{"jobs": jobs})
}
