package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// settingFields maps each dot-notation config key to the field it sets.
// The field pointer type decides how the value is parsed and stored.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var settingFields = map[string]func(*domain.AppSettings) any{
	"storage.root":         func(s *domain.AppSettings) any { return &s.Storage.Root },
	"storage.lock_timeout": func(s *domain.AppSettings) any { return &s.Storage.LockTimeout },

	"partition.max_tokens_per_chunk": func(s *domain.AppSettings) any { return &s.Partition.MaxTokensPerChunk },
	"partition.max_tokens_per_line":  func(s *domain.AppSettings) any { return &s.Partition.MaxTokensPerLine },
	"partition.overlap_tokens":       func(s *domain.AppSettings) any { return &s.Partition.OverlapTokens },

	"search.max_matches":    func(s *domain.AppSettings) any { return &s.Search.MaxMatches },
	"search.answer_tokens":  func(s *domain.AppSettings) any { return &s.Search.AnswerTokens },
	"search.context_tokens": func(s *domain.AppSettings) any { return &s.Search.ContextTokens },
	"search.min_relevance":  func(s *domain.AppSettings) any { return &s.Search.MinRelevance },

	"embedding.provider":            func(s *domain.AppSettings) any { return &s.Embedding.Provider },
	"embedding.model":               func(s *domain.AppSettings) any { return &s.Embedding.Model },
	"embedding.base_url":            func(s *domain.AppSettings) any { return &s.Embedding.BaseURL },
	"embedding.api_key":             func(s *domain.AppSettings) any { return &s.Embedding.APIKey },
	"embedding.dimensions":          func(s *domain.AppSettings) any { return &s.Embedding.Dimensions },
	"embedding.requests_per_second": func(s *domain.AppSettings) any { return &s.Embedding.RequestsPerSecond },

	"generation.provider":            func(s *domain.AppSettings) any { return &s.Generation.Provider },
	"generation.model":               func(s *domain.AppSettings) any { return &s.Generation.Model },
	"generation.base_url":            func(s *domain.AppSettings) any { return &s.Generation.BaseURL },
	"generation.api_key":             func(s *domain.AppSettings) any { return &s.Generation.APIKey },
	"generation.max_tokens":          func(s *domain.AppSettings) any { return &s.Generation.MaxTokens },
	"generation.temperature":         func(s *domain.AppSettings) any { return &s.Generation.Temperature },
	"generation.stop":                func(s *domain.AppSettings) any { return &s.Generation.Stop },
	"generation.context_size":        func(s *domain.AppSettings) any { return &s.Generation.ContextSize },
	"generation.requests_per_second": func(s *domain.AppSettings) any { return &s.Generation.RequestsPerSecond },

	"ingest.workers":         func(s *domain.AppSettings) any { return &s.Ingest.Workers },
	"ingest.batch_size":      func(s *domain.AppSettings) any { return &s.Ingest.BatchSize },
	"ingest.max_attempts":    func(s *domain.AppSettings) any { return &s.Ingest.MaxAttempts },
	"ingest.initial_backoff": func(s *domain.AppSettings) any { return &s.Ingest.InitialBackoff },
	"ingest.max_backoff":     func(s *domain.AppSettings) any { return &s.Ingest.MaxBackoff },
	"ingest.steps":           func(s *domain.AppSettings) any { return &s.Ingest.Steps },
}

// SettingsService resolves application settings from defaults, the config
// store and any overlays, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	overlays    []driven.SettingsOverlay
	validator   driven.ProviderValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, overlays ...driven.SettingsOverlay) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		overlays:    overlays,
	}
}

// WithValidator enables TestProviders.
func (s *SettingsService) WithValidator(v driven.ProviderValidator) *SettingsService {
	s.validator = v
	return s
}

// TestProviders contacts the configured embedding and generation providers.
// A failed check is reported in its ProviderCheck, not as the error.
func (s *SettingsService) TestProviders(ctx context.Context) ([]domain.ProviderCheck, error) {
	if s.validator == nil {
		return nil, fmt.Errorf("%w: no provider validator", domain.ErrInvalidConfig)
	}
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}

	emb := domain.ProviderCheck{
		Role:     "embedding",
		Provider: settings.Embedding.Provider,
		Model:    settings.Embedding.Model,
		Skipped:  !settings.Embedding.IsConfigured(),
	}
	if !emb.Skipped {
		emb.Err = s.validator.ValidateEmbedding(ctx, &settings.Embedding)
	}

	gen := domain.ProviderCheck{
		Role:     "generation",
		Provider: settings.Generation.Provider,
		Model:    settings.Generation.Model,
		Skipped:  !settings.Generation.IsConfigured(),
	}
	if !gen.Skipped {
		gen.Err = s.validator.ValidateGeneration(ctx, &settings.Generation)
	}
	return []domain.ProviderCheck{emb, gen}, nil
}

// Get retrieves current application settings and validates them.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings, err := s.resolve()
	if err != nil {
		return nil, err
	}
	for _, o := range s.overlays {
		if err := o.Apply(settings); err != nil {
			return nil, err
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// resolve layers the config store over the defaults.
func (s *SettingsService) resolve() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	for _, key := range s.Keys() {
		raw, ok := s.configStore.Get(key)
		if !ok {
			continue
		}
		if err := loadField(settingFields[key](&settings), key, raw); err != nil {
			return nil, err
		}
	}
	return &settings, nil
}

// Set parses value according to the key's type, checks that the resulting
// settings are valid and stores it in the config file.
func (s *SettingsService) Set(key, value string) error {
	field, ok := settingFields[key]
	if !ok {
		return &domain.ConfigError{Field: key, Reason: "unknown setting"}
	}

	settings, err := s.resolve()
	if err != nil {
		return err
	}
	stored, err := parseField(field(settings), key, value)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns all settable keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingFields))
	for k := range settingFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Path returns the config file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// loadField copies a stored config value into a settings field.
// Values come from TOML or the in-memory store, so integers may be int or
// int64 and lists []any or a comma separated string.
func loadField(field any, key string, raw any) error {
	mismatch := func(want string) error {
		return &domain.ConfigError{Field: key, Reason: fmt.Sprintf("expected %s, got %T", want, raw)}
	}

	switch f := field.(type) {
	case *string:
		v, ok := raw.(string)
		if !ok {
			return mismatch("a string")
		}
		*f = v
	case *int:
		v, ok := intValue(raw)
		if !ok {
			return mismatch("an integer")
		}
		*f = v
	case *float64:
		v, ok := floatValue(raw)
		if !ok {
			return mismatch("a number")
		}
		*f = v
	case *domain.AIProvider:
		v, ok := raw.(string)
		if !ok {
			return mismatch("a provider name")
		}
		*f = domain.AIProvider(strings.ToLower(v))
	case *[]string:
		v, ok := listValue(raw)
		if !ok {
			return mismatch("a list")
		}
		*f = v
	case *time.Duration:
		d, err := durationValue(raw)
		if err != nil {
			return &domain.ConfigError{Field: key, Reason: err.Error()}
		}
		*f = d
	case *[]domain.Step:
		names, ok := listValue(raw)
		if !ok {
			return mismatch("a list of steps")
		}
		steps, err := domain.ParseSteps(strings.Join(names, ","))
		if err != nil {
			return &domain.ConfigError{Field: key, Reason: err.Error()}
		}
		*f = steps
	default:
		return fmt.Errorf("setting %s has unsupported type %T", key, field)
	}
	return nil
}

func intValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func floatValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	n, ok := intValue(raw)
	return float64(n), ok
}

// listValue accepts []string, a TOML array of strings or a comma separated string.
func listValue(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.Split(v, ","), true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// parseField parses a command-line value into a settings field and returns
// the value to store in the config file.
func parseField(field any, key, value string) (any, error) {
	invalid := func(err error) error {
		return &domain.ConfigError{Field: key, Reason: err.Error()}
	}
	value = strings.TrimSpace(value)

	switch f := field.(type) {
	case *string:
		*f = value
		return value, nil
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, invalid(fmt.Errorf("expected an integer, got %q", value))
		}
		*f = n
		return n, nil
	case *float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, invalid(fmt.Errorf("expected a number, got %q", value))
		}
		*f = v
		return v, nil
	case *domain.AIProvider:
		p := domain.AIProvider(strings.ToLower(value))
		if !p.IsValid() {
			return nil, invalid(fmt.Errorf("unknown provider %q", value))
		}
		*f = p
		return p.String(), nil
	case *time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, invalid(err)
		}
		*f = d
		return d.String(), nil
	case *[]domain.Step:
		steps, err := domain.ParseSteps(value)
		if err != nil {
			return nil, invalid(err)
		}
		*f = steps
		return stepNames(steps), nil
	case *[]string:
		list := splitList(value)
		*f = list
		return list, nil
	}
	return nil, fmt.Errorf("setting %s has unsupported type %T", key, field)
}

func durationValue(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return time.ParseDuration(v)
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("expected a duration, got %T", raw)
}

// splitList splits a comma separated list and unescapes Go escape
// sequences such as \n in each item.
func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if u, err := strconv.Unquote(`"` + p + `"`); err == nil {
			p = u
		}
		out = append(out, p)
	}
	return out
}

func stepNames(steps []domain.Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return names
}
