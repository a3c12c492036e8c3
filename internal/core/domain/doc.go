// Package domain defines the core business entities for ragmem.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested file tracked through the pipeline
//   - Chunk: A bounded span of document text used for retrieval
//   - IndexEntry: A chunk vector as stored in the vector index
//   - PipelineJob: Progress of one document through the ingestion steps
//   - Answer: A generated answer with the sources it cites
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
