// Package logging builds the slog loggers used throughout unspool.
//
// It provides the console and JSON handlers, the log stream hub and
// event archive consumed by the IPC layer, and context helpers that
// stamp queue item, stage, and session identifiers onto every line.
// Components take a *slog.Logger built here rather than configuring
// slog themselves, so all output shares one shape.
package logging
