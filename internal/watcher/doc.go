// Package watcher feeds the work queue from the inbox directory.
//
// The watcher polls rather than subscribing to filesystem events: inboxes
// commonly live on network mounts where notify support is unreliable, and
// a poll interval measured in seconds is plenty for hand-dropped files. A
// candidate must hold its size across consecutive polls before it is
// fingerprinted and enqueued, so half-copied files never enter the queue.
//
// Re-discovering a fingerprint the queue already knows is not an error:
// failed items are reset for another attempt, everything else is left
// alone. Within one watcher session each file is handed to the queue at
// most once; the tracking entry clears when the file leaves the inbox.
package watcher
