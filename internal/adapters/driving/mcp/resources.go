package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// Resource URIs are ragmem://documents, ragmem://documents/{id} and
// ragmem://documents/{id}/chunks.
const (
	scheme       = "ragmem"
	documentsURI = scheme + "://documents"
)

func (s *Server) registerResources() {
	if s.ports.Document == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Every document in the memory with its status and chunk count",
		MIMEType:    "application/json",
	}, s.readDocuments)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{id}",
		Name:        "document-content",
		Description: "Normalised text of one document",
		MIMEType:    "text/plain",
	}, s.readDocumentContent)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{id}/chunks",
		Name:        "document-chunks",
		Description: "The chunks one document was split into, in order",
		MIMEType:    "application/json",
	}, s.readDocumentChunks)
}

type documentEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Chunks    int       `json:"chunks"`
	UpdatedAt time.Time `json:"updated_at"`
}

type chunkEntry struct {
	Position int    `json:"position"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
}

func (s *Server) readDocuments(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Document.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	entries := make([]documentEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, documentEntry{
			ID:        d.ID,
			Title:     d.Title,
			Path:      d.Path,
			Status:    string(d.Status),
			Chunks:    d.ChunkCount,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return jsonResult(req.Params.URI, entries)
}

func (s *Server) readDocumentContent(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, part := parseDocumentURI(uri)
	if id == "" || part != "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	content, err := s.ports.Document.GetContent(ctx, id)
	if err != nil {
		return nil, notFoundOr(uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "text/plain", Text: content}},
	}, nil
}

func (s *Server) readDocumentChunks(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, part := parseDocumentURI(uri)
	if id == "" || part != "chunks" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	chunks, err := s.ports.Document.GetChunks(ctx, id)
	if err != nil {
		return nil, notFoundOr(uri, err)
	}

	entries := make([]chunkEntry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, chunkEntry{Position: c.Position, Kind: string(c.Kind), Content: c.Content})
	}
	return jsonResult(uri, entries)
}

// parseDocumentURI splits ragmem://documents/{id}[/{part}]. It returns an
// empty id for any other URI.
func parseDocumentURI(raw string) (id, part string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != scheme || u.Host != "documents" {
		return "", ""
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	switch {
	case len(segments) == 1:
		return segments[0], ""
	case len(segments) == 2 && segments[0] != "" && segments[1] != "":
		return segments[0], segments[1]
	}
	return "", ""
}

func notFoundOr(uri string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.ResourceNotFoundError(uri)
	}
	return fmt.Errorf("read %s: %w", uri, err)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}
