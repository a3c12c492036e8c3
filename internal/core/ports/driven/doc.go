// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for ingestion and search to function:
//
//   - EmbeddingService: Maps text to fixed-length vectors
//   - VectorIndex: Persists chunk vectors and answers nearest-neighbour queries
//   - DocumentStore: Persists documents and chunk text
//   - JobStore: Persists pipeline job checkpoints
//   - StagingArea: Write-ahead records for atomic per-document commits
//   - NormaliserRegistry: Extracts text from raw files
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - GenerationService: Without it, search works but answers cannot be produced
//     and the summarize step is unavailable.
//   - PromptStore: Without it, built-in prompt templates are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
