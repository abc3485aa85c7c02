// Package trackspec defines the structured payload shared between workflow stages.
//
// The Envelope type captures container metadata, decrypted stream details, and
// the staged artefact as items progress through identification, unlocking, and
// ingestion. Stages read and extend the envelope rather than maintaining
// separate state, so it becomes the single source of truth for what a locked
// file contains and what has been produced from it.
//
// # Lifecycle
//
// Identification populates Format plus the title, artists, album, and duration
// advertised by the container. Unlocking records the decrypted Codec, the
// staged payload path, the content hash and metadata key, and refreshes the
// descriptive fields from the reconstructed stream. Ingestion consumes the
// staged path and hash to classify and place the track; it adds nothing.
//
// # Entry Points
//
// Parse: load an envelope from JSON (returns an empty envelope on blank input).
// Envelope.Encode: serialise the envelope to JSON for persistence.
// Envelope.AddWarning: record a non-fatal stage observation.
package trackspec
