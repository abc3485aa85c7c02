// Package ingestor implements the final workflow stage. It classifies the
// unlocked track against the library catalog, moves it into the library or
// the duplicates directory with a single filesystem move, consumes the
// source container, and records additions in the catalog so later files are
// judged against them. Conflicts complete with a review flag instead of
// blocking the queue.
package ingestor
