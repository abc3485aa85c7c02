// Package identification implements the first workflow stage: it detects the
// container family of a queued file and lifts the header metadata onto the
// queue item, without decrypting anything. Files that are not recognizable
// locked containers are routed to review here, before any unlock work is
// spent on them.
package identification
