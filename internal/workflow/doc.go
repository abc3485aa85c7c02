// Package workflow coordinates queue-backed processing of locked audio files.
//
// The manager owns a single runner goroutine that drains the queue in stage
// order. Each stage is a Handler registered against the status it consumes:
// identifier (pending), unlocker (identified), ingestor (unlocked). The runner
// claims the oldest eligible item, transitions it to the stage's processing
// status, executes the handler under a heartbeat, and persists the result
// status. A failed item never blocks the rest of the queue.
//
// Failure routing follows error classification from the services package:
// validation and configuration failures park the item in review for operator
// attention, everything else lands in failed where a retry can pick it up.
// Items that stop heartbeating (daemon crash, kill -9) are rolled back to the
// start of their stage on the next runner pass.
package workflow
