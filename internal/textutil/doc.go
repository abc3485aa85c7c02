// Package textutil provides text helpers for metadata comparison and
// filesystem-safe naming.
//
// The primary use cases are:
//   - Canonicalizing tag fields (NFKC, case folding, whitespace collapse)
//     so duplicate detection compares what listeners see, not raw bytes
//   - Deriving display titles from file names when tags are absent
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
