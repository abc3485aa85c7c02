// Package daemon coordinates the long-running unspool services: the
// workflow manager that drains the queue, the inbox watcher that feeds
// it, and the library catalog they share. A file lock enforces a single
// daemon instance per workspace; the IPC layer drives everything else
// through the Daemon type.
package daemon
