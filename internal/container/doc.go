// Package container detects and parses encrypted music container files.
//
// Detection is cheap: magic bytes first, extension fallback for formats
// whose bodies are pure ciphertext. Parsing validates structure, recovers
// per-file key material and whatever metadata the header carries, and
// locates the encrypted audio payload without decrypting it.
package container
