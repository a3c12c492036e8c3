package driven

import "github.com/custodia-labs/ragmem/internal/core/domain"

// SettingsOverlay applies settings from a source above the config file,
// such as the process environment.
type SettingsOverlay interface {
	// Apply overwrites the fields the source sets and leaves the rest alone.
	Apply(settings *domain.AppSettings) error
}
