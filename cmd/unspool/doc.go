// The unspool command is the operator's front door: it starts and stops
// the daemon, runs one-shot batch unlocks, inspects and repairs the
// queue, and manages configuration and the library catalog.
//
// Commands stay thin. Anything with real logic belongs in an internal
// package; this package only parses flags, resolves configuration, and
// renders results.
package main
