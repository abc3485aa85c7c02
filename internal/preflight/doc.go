// Package preflight provides readiness checks for the filesystem paths and
// index files Unspool depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup. If any check fails, the daemon
//     refuses to start rather than fail mid-batch with sources in flight.
//   - The CLI "unspool status" command uses individual check functions
//     (CheckDirectoryAccess, CheckFreeSpace, CheckCatalog) and ProbeInbox
//     to display operational health.
package preflight
