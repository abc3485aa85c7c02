// Package unlocker implements the decryption workflow stage. It recovers the
// container's key material, streams the payload through the recovered cipher
// into staging, reconstructs tags and artwork on the decrypted track, and
// records the staged path plus the content fingerprint on the queue item for
// the ingest stage. Containers with keyed schemes this build cannot derive
// are parked in review with the source untouched.
package unlocker
