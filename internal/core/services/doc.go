// Package services holds the memory engine: ingestion through the staging
// area and step pipeline, recovery of interrupted work, hybrid search and
// grounded answers. It depends only on the driven ports, so every adapter
// (SQLite, vector files, Ollama, OpenAI) is swapped in by the caller.
package services
