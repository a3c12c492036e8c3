// Package tui provides an interactive terminal user interface for ragmem.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and runs similarity searches.
	Query driving.QueryService

	// Document lists, shows and deletes stored documents.
	Document driving.DocumentService

	// Settings manages application settings. Optional.
	Settings driving.SettingsService
}

// PortsFor builds the ports from a memory service and optional settings.
func PortsFor(memory driving.MemoryService, settings driving.SettingsService) *Ports {
	p := &Ports{Settings: settings}
	if memory != nil {
		p.Query = memory
		p.Document = memory
	}
	return p
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}
