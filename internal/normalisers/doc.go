// Package normalisers provides implementations of the Normaliser interface
// for various document formats. Each normaliser knows how to extract text
// content from a specific MIME type.
//
// Normalisers are registered with the Registry at startup; the registry
// picks the highest-priority normaliser for a file's MIME type, which is
// detected from the file extension.
package normalisers
