// Package logs reads daemon log files for the CLI: bounded "last N
// lines" tails, offset-based incremental reads, and the polling behind
// `unspool show --follow`. Files are reopened per call so log rotation
// never strands a follower.
package logs
