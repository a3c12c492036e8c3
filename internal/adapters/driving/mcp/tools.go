package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

const defaultSearchLimit = 10

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the memory"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Found   bool           `json:"found"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is a document cited by an answer.
type SourceOutput struct {
	DocumentID string  `json:"document_id"`
	Path       string  `json:"path"`
	Title      string  `json:"title,omitempty"`
	Relevance  float64 `json:"relevance"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
	Content    string  `json:"content,omitempty"`
}

// ImportInput is the input schema for the import_document tool.
type ImportInput struct {
	Path  string   `json:"path" jsonschema:"absolute path of the file to import"`
	Steps []string `json:"steps,omitempty" jsonschema:"pipeline steps: partition, summarize, embed, index (default all but summarize)"`
}

// ImportOutput is the output schema for the import_document tool.
type ImportOutput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the documents in the memory. Returns INFO NOT FOUND when nothing relevant is stored.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the stored passages most similar to a query",
	}, s.handleSearch)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "import_document",
			Description: "Import a local file into the memory",
		}, s.handleImport)
	}
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}

	answer, err := s.ports.Query.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:  answer.Text,
		Found:   answer.HasAnswer(),
		Sources: make([]SourceOutput, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID: src.DocumentID,
			Path:       src.Path,
			Title:      src.Title,
			Relevance:  src.Relevance,
		}
	}
	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.ports.Query.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].Document.ID,
			ChunkID:    results[i].Chunk.ID,
			Title:      results[i].Document.Title,
			Path:       results[i].Document.Path,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Content,
		}
	}

	return nil, output, nil
}

// handleImport handles the import_document tool invocation.
func (s *Server) handleImport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ImportInput,
) (*mcp.CallToolResult, ImportOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, ImportOutput{}, errors.New("path is required")
	}
	steps, err := domain.ParseSteps(strings.Join(input.Steps, ","))
	if err != nil {
		return nil, ImportOutput{}, err
	}

	doc, err := s.ports.Ingest.ImportDocument(ctx, input.Path, steps)
	if err != nil {
		return nil, ImportOutput{}, err
	}

	return nil, ImportOutput{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Status:     string(doc.Status),
		Chunks:     doc.ChunkCount,
	}, nil
}
