// Package services defines shared utilities consumed by the workflow stage
// handlers.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, stage names, and batch or
//     request correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (failed vs review).
//
// Domain-specific failure sentinels (container parsing, cipher, codec,
// ingest) live next to the code that raises them; stage handlers wrap those
// with the markers here so operational behaviour stays uniform across the
// pipeline.
package services
