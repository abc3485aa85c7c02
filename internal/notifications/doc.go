// Package notifications pushes workflow milestones (track unlocked,
// batch finished, failures needing review) to an ntfy topic. With no
// topic configured the service collapses to a no-op, so callers never
// guard their notify calls.
package notifications
