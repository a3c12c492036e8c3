package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API (generation only).
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderHash is the built-in feature-hashing embedder.
	// It needs no network and is deterministic, but has no semantic understanding.
	AIProviderHash AIProvider = "hash"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderHash:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs on this machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHash
}

// SupportsEmbedding returns true if the provider can produce embeddings.
func (p AIProvider) SupportsEmbedding() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI || p == AIProviderHash
}

// SupportsGeneration returns true if the provider can generate text.
func (p AIProvider) SupportsGeneration() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderHash:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// StorageSettings holds the memory directory configuration.
type StorageSettings struct {
	// Root is the memory directory holding vectors, docstore and staging.
	Root string

	// LockTimeout bounds how long a writer waits for the memory lock.
	LockTimeout time.Duration
}

// PartitionSettings bounds chunk sizes in tokens.
type PartitionSettings struct {
	MaxTokensPerChunk int
	MaxTokensPerLine  int
	OverlapTokens     int
}

// Validate checks the partition budgets.
func (p PartitionSettings) Validate() error {
	switch {
	case p.MaxTokensPerChunk <= 0:
		return &ConfigError{Field: "partition.max_tokens_per_chunk", Reason: "must be positive"}
	case p.MaxTokensPerLine <= 0:
		return &ConfigError{Field: "partition.max_tokens_per_line", Reason: "must be positive"}
	case p.MaxTokensPerLine > p.MaxTokensPerChunk:
		return &ConfigError{Field: "partition.max_tokens_per_line", Reason: "must not exceed max_tokens_per_chunk"}
	case p.OverlapTokens < 0:
		return &ConfigError{Field: "partition.overlap_tokens", Reason: "must not be negative"}
	case p.OverlapTokens >= p.MaxTokensPerChunk:
		return &ConfigError{Field: "partition.overlap_tokens", Reason: "must be less than max_tokens_per_chunk"}
	}
	return nil
}

// SearchSettings holds retrieval and answer budgets.
type SearchSettings struct {
	// MaxMatches is the number of chunks retrieved per question.
	MaxMatches int

	// AnswerTokens caps the length of a generated answer. generation.max_tokens
	// overrides it when set.
	AnswerTokens int

	// ContextTokens is the token budget for retrieved chunks in the prompt.
	// Zero derives it, see AppSettings.ContextBudget.
	ContextTokens int

	// MinRelevance drops matches scoring below this cosine similarity.
	MinRelevance float64
}

// Validate checks the search settings.
func (s SearchSettings) Validate() error {
	switch {
	case s.MaxMatches <= 0:
		return &ConfigError{Field: "search.max_matches", Reason: "must be positive"}
	case s.AnswerTokens <= 0:
		return &ConfigError{Field: "search.answer_tokens", Reason: "must be positive"}
	case s.ContextTokens < 0:
		return &ConfigError{Field: "search.context_tokens", Reason: "must not be negative"}
	case s.MinRelevance < -1 || s.MinRelevance > 1:
		return &ConfigError{Field: "search.min_relevance", Reason: "must be within [-1, 1]"}
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known vector size.
	Dimensions int

	// RequestsPerSecond rate-limits calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbedding() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ProviderCheck reports whether one configured AI provider answered.
type ProviderCheck struct {
	// Role is "embedding" or "generation".
	Role     string
	Provider AIProvider
	Model    string

	// Skipped is set when the role has no usable configuration.
	Skipped bool
	Err     error
}

// OK reports a provider that was checked and answered.
func (c ProviderCheck) OK() bool {
	return !c.Skipped && c.Err == nil
}

// GenerationSettings holds text generation provider configuration.
type GenerationSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// MaxTokens caps generated tokens. Zero uses the provider default.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// Stop sequences end generation early.
	Stop []string

	// ContextSize is the model context window in tokens.
	ContextSize int

	// RequestsPerSecond rate-limits calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the generation provider is set up.
func (g GenerationSettings) IsConfigured() bool {
	if !g.Provider.SupportsGeneration() {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// IngestSettings controls the ingestion worker pool and retries.
type IngestSettings struct {
	// Workers is the number of documents ingested in parallel.
	Workers int

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// MaxAttempts bounds embedding attempts per batch.
	MaxAttempts int

	// InitialBackoff is the first retry delay; it doubles up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Steps is the default pipeline step set.
	Steps []Step
}

// Validate checks the ingestion settings.
func (i IngestSettings) Validate() error {
	switch {
	case i.Workers <= 0:
		return &ConfigError{Field: "ingest.workers", Reason: "must be positive"}
	case i.BatchSize <= 0:
		return &ConfigError{Field: "ingest.batch_size", Reason: "must be positive"}
	case i.MaxAttempts <= 0:
		return &ConfigError{Field: "ingest.max_attempts", Reason: "must be positive"}
	case i.InitialBackoff <= 0:
		return &ConfigError{Field: "ingest.initial_backoff", Reason: "must be positive"}
	case i.MaxBackoff < i.InitialBackoff:
		return &ConfigError{Field: "ingest.max_backoff", Reason: "must not be less than initial_backoff"}
	}
	if _, err := NormaliseSteps(i.Steps); err != nil {
		return &ConfigError{Field: "ingest.steps", Reason: err.Error()}
	}
	return nil
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage    StorageSettings
	Partition  PartitionSettings
	Search     SearchSettings
	Embedding  EmbeddingSettings
	Generation GenerationSettings
	Ingest     IngestSettings
}

// Validate checks every section and returns the first failure.
func (s AppSettings) Validate() error {
	if s.Storage.Root == "" {
		return &ConfigError{Field: "storage.root", Reason: "must not be empty"}
	}
	if s.Storage.LockTimeout < 0 {
		return &ConfigError{Field: "storage.lock_timeout", Reason: "must not be negative"}
	}
	if err := s.Partition.Validate(); err != nil {
		return err
	}
	if err := s.Search.Validate(); err != nil {
		return err
	}
	if budget := s.ContextBudget(); budget < s.Partition.MaxTokensPerChunk {
		return &ConfigError{
			Field: "search.context_tokens",
			Reason: fmt.Sprintf("context budget of %d tokens cannot hold one chunk of partition.max_tokens_per_chunk %d",
				budget, s.Partition.MaxTokensPerChunk),
		}
	}
	if err := s.Ingest.Validate(); err != nil {
		return err
	}
	if s.Embedding.Provider != "" && !s.Embedding.Provider.SupportsEmbedding() {
		return &ConfigError{
			Field:  "embedding.provider",
			Reason: fmt.Sprintf("%q does not provide embeddings", s.Embedding.Provider),
		}
	}
	if s.Embedding.Dimensions < 0 {
		return &ConfigError{Field: "embedding.dimensions", Reason: "must not be negative"}
	}
	if s.Generation.Provider != "" && !s.Generation.Provider.SupportsGeneration() {
		return &ConfigError{
			Field:  "generation.provider",
			Reason: fmt.Sprintf("%q does not generate text", s.Generation.Provider),
		}
	}
	if s.Generation.Temperature < 0 || s.Generation.Temperature > 2 {
		return &ConfigError{Field: "generation.temperature", Reason: "must be within [0, 2]"}
	}
	if s.Generation.ContextSize < 0 {
		return &ConfigError{Field: "generation.context_size", Reason: "must not be negative"}
	}
	return nil
}

// ContextBudget returns the prompt context budget in tokens. An explicit
// search.context_tokens wins. Otherwise the generator's context window less
// the answer length is used, and without a known window, room for
// max_matches full chunks.
func (s AppSettings) ContextBudget() int {
	switch {
	case s.Search.ContextTokens > 0:
		return s.Search.ContextTokens
	case s.Generation.ContextSize > 0:
		return s.Generation.ContextSize - s.answerLength()
	default:
		return s.Search.MaxMatches * s.Partition.MaxTokensPerChunk
	}
}

func (s AppSettings) answerLength() int {
	if s.Generation.MaxTokens > 0 {
		return s.Generation.MaxTokens
	}
	return s.Search.AnswerTokens
}

// DefaultAppSettings returns settings with the stock partition and search budgets.
// Embedding defaults to the offline hash provider; generation is unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{
			Root:        "storage-ragmem",
			LockTimeout: 10 * time.Second,
		},
		Partition: PartitionSettings{
			MaxTokensPerChunk: 200,
			MaxTokensPerLine:  70,
			OverlapTokens:     25,
		},
		Search: SearchSettings{
			MaxMatches:   2,
			AnswerTokens: 100,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderHash,
			Model:    DefaultEmbeddingModels()[AIProviderHash],
		},
		Generation: GenerationSettings{
			Stop:        []string{"\n\n"},
			ContextSize: 2048,
		},
		Ingest: IngestSettings{
			Workers:        4,
			BatchSize:      16,
			MaxAttempts:    4,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Steps:          PipelineWithoutSummary(),
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderHash}
}

// AllGenerationProviders returns providers that support generation.
func AllGenerationProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderHash:   "hash-384",
	}
}

// DefaultGenerationModels returns default models for each generation provider.
func DefaultGenerationModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns known dimensions for embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"hash-384":               384,
	}
}
