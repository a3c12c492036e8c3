package driving

import (
	"context"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from defaults, the config file and the environment.
	Get() (*domain.AppSettings, error)

	// Set stores a single dot-notation key in the config file.
	// The value is parsed according to the key's type and validated.
	Set(key, value string) error

	// Keys returns all settable keys in sorted order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// Path returns the config file path.
	Path() string

	// TestProviders pings the configured AI providers.
	TestProviders(ctx context.Context) ([]domain.ProviderCheck, error)
}
