// Package env overlays application settings from environment variables.
//
// Variables use the RAGMEM_ prefix and upper-case section names, for example
// RAGMEM_SEARCH_MAX_MATCHES or RAGMEM_EMBEDDING_PROVIDER. A .env file in the
// working directory is loaded first; variables already set in the process
// take precedence over it.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Prefix is the environment variable prefix.
const Prefix = "RAGMEM"

// Ensure Overlay implements the interface.
var _ driven.SettingsOverlay = (*Overlay)(nil)

// vars mirrors domain.AppSettings. Pointer fields stay nil when the variable
// is unset, so only explicitly set values override lower layers.
type vars struct {
	StorageRoot        *string        `envconfig:"STORAGE_ROOT"`
	StorageLockTimeout *time.Duration `envconfig:"STORAGE_LOCK_TIMEOUT"`

	PartitionMaxTokensPerChunk *int `envconfig:"PARTITION_MAX_TOKENS_PER_CHUNK"`
	PartitionMaxTokensPerLine  *int `envconfig:"PARTITION_MAX_TOKENS_PER_LINE"`
	PartitionOverlapTokens     *int `envconfig:"PARTITION_OVERLAP_TOKENS"`

	SearchMaxMatches    *int     `envconfig:"SEARCH_MAX_MATCHES"`
	SearchAnswerTokens  *int     `envconfig:"SEARCH_ANSWER_TOKENS"`
	SearchContextTokens *int     `envconfig:"SEARCH_CONTEXT_TOKENS"`
	SearchMinRelevance  *float64 `envconfig:"SEARCH_MIN_RELEVANCE"`

	EmbeddingProvider          *string  `envconfig:"EMBEDDING_PROVIDER"`
	EmbeddingModel             *string  `envconfig:"EMBEDDING_MODEL"`
	EmbeddingBaseURL           *string  `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey            *string  `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingDimensions        *int     `envconfig:"EMBEDDING_DIMENSIONS"`
	EmbeddingRequestsPerSecond *float64 `envconfig:"EMBEDDING_REQUESTS_PER_SECOND"`

	GenerationProvider          *string  `envconfig:"GENERATION_PROVIDER"`
	GenerationModel             *string  `envconfig:"GENERATION_MODEL"`
	GenerationBaseURL           *string  `envconfig:"GENERATION_BASE_URL"`
	GenerationAPIKey            *string  `envconfig:"GENERATION_API_KEY"`
	GenerationMaxTokens         *int     `envconfig:"GENERATION_MAX_TOKENS"`
	GenerationTemperature       *float64 `envconfig:"GENERATION_TEMPERATURE"`
	GenerationContextSize       *int     `envconfig:"GENERATION_CONTEXT_SIZE"`
	GenerationRequestsPerSecond *float64 `envconfig:"GENERATION_REQUESTS_PER_SECOND"`

	IngestWorkers        *int           `envconfig:"INGEST_WORKERS"`
	IngestBatchSize      *int           `envconfig:"INGEST_BATCH_SIZE"`
	IngestMaxAttempts    *int           `envconfig:"INGEST_MAX_ATTEMPTS"`
	IngestInitialBackoff *time.Duration `envconfig:"INGEST_INITIAL_BACKOFF"`
	IngestMaxBackoff     *time.Duration `envconfig:"INGEST_MAX_BACKOFF"`
	IngestSteps          *string        `envconfig:"INGEST_STEPS"`
}

// Overlay reads settings from the environment.
type Overlay struct {
	dotenvFiles []string
	lookup      func(string) (string, bool)
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithDotenv sets the .env files to load. Missing files are ignored.
func WithDotenv(files ...string) Option {
	return func(o *Overlay) {
		o.dotenvFiles = files
	}
}

// WithLookup replaces the lookup used for the conventional provider keys.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *Overlay) {
		o.lookup = lookup
	}
}

// New creates an environment overlay. By default it loads ".env".
func New(opts ...Option) *Overlay {
	o := &Overlay{
		dotenvFiles: []string{".env"},
		lookup:      os.LookupEnv,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply loads .env files and overwrites every field set in the environment.
func (o *Overlay) Apply(s *domain.AppSettings) error {
	for _, f := range o.dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	var v vars
	if err := envconfig.Process(Prefix, &v); err != nil {
		return &domain.ConfigError{Field: "environment", Reason: err.Error()}
	}

	setString(&s.Storage.Root, v.StorageRoot)
	setValue(&s.Storage.LockTimeout, v.StorageLockTimeout)

	setValue(&s.Partition.MaxTokensPerChunk, v.PartitionMaxTokensPerChunk)
	setValue(&s.Partition.MaxTokensPerLine, v.PartitionMaxTokensPerLine)
	setValue(&s.Partition.OverlapTokens, v.PartitionOverlapTokens)

	setValue(&s.Search.MaxMatches, v.SearchMaxMatches)
	setValue(&s.Search.AnswerTokens, v.SearchAnswerTokens)
	setValue(&s.Search.ContextTokens, v.SearchContextTokens)
	setValue(&s.Search.MinRelevance, v.SearchMinRelevance)

	if v.EmbeddingProvider != nil {
		s.Embedding.Provider = domain.AIProvider(strings.ToLower(*v.EmbeddingProvider))
	}
	setString(&s.Embedding.Model, v.EmbeddingModel)
	setString(&s.Embedding.BaseURL, v.EmbeddingBaseURL)
	setString(&s.Embedding.APIKey, v.EmbeddingAPIKey)
	setValue(&s.Embedding.Dimensions, v.EmbeddingDimensions)
	setValue(&s.Embedding.RequestsPerSecond, v.EmbeddingRequestsPerSecond)

	if v.GenerationProvider != nil {
		s.Generation.Provider = domain.AIProvider(strings.ToLower(*v.GenerationProvider))
	}
	setString(&s.Generation.Model, v.GenerationModel)
	setString(&s.Generation.BaseURL, v.GenerationBaseURL)
	setString(&s.Generation.APIKey, v.GenerationAPIKey)
	setValue(&s.Generation.MaxTokens, v.GenerationMaxTokens)
	setValue(&s.Generation.Temperature, v.GenerationTemperature)
	setValue(&s.Generation.ContextSize, v.GenerationContextSize)
	setValue(&s.Generation.RequestsPerSecond, v.GenerationRequestsPerSecond)

	setValue(&s.Ingest.Workers, v.IngestWorkers)
	setValue(&s.Ingest.BatchSize, v.IngestBatchSize)
	setValue(&s.Ingest.MaxAttempts, v.IngestMaxAttempts)
	setValue(&s.Ingest.InitialBackoff, v.IngestInitialBackoff)
	setValue(&s.Ingest.MaxBackoff, v.IngestMaxBackoff)
	if v.IngestSteps != nil {
		steps, err := domain.ParseSteps(*v.IngestSteps)
		if err != nil {
			return &domain.ConfigError{Field: "ingest.steps", Reason: err.Error()}
		}
		s.Ingest.Steps = steps
	}

	o.applyProviderKeys(s)
	return nil
}

// applyProviderKeys fills empty API keys from OPENAI_API_KEY and ANTHROPIC_API_KEY.
func (o *Overlay) applyProviderKeys(s *domain.AppSettings) {
	key := func(p domain.AIProvider) string {
		var name string
		switch p {
		case domain.AIProviderOpenAI:
			name = "OPENAI_API_KEY"
		case domain.AIProviderAnthropic:
			name = "ANTHROPIC_API_KEY"
		default:
			return ""
		}
		v, _ := o.lookup(name)
		return v
	}
	if s.Embedding.APIKey == "" {
		s.Embedding.APIKey = key(s.Embedding.Provider)
	}
	if s.Generation.APIKey == "" {
		s.Generation.APIKey = key(s.Generation.Provider)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}
