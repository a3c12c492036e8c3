package mcp

import (
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and searches the memory.
	Query driving.QueryService

	// Ingest imports documents. Without it the import_document tool is not offered.
	Ingest driving.IngestService

	// Document lists documents and reads their content.
	Document driving.DocumentService
}

// PortsFor exposes every service of one memory.
func PortsFor(memory driving.MemoryService) *Ports {
	return &Ports{Query: memory, Ingest: memory, Document: memory}
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
