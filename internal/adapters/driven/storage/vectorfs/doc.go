// Package vectorfs provides a directory-backed vector index.
// It implements the driven.VectorIndex interface.
//
// The index is held in memory as an immutable snapshot and searched by brute
// force cosine similarity. Persist writes three files to the index directory:
//
//	index_manifest.json  version, dimension, entry count and embedding model
//	entries.jsonl        one entry per line, in insertion order
//	vectors.f32          the vectors, little-endian float32, in entry order
package vectorfs
