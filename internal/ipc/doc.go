// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between queue models and lightweight wire representations. The server embeds
// a *daemon.Daemon and forwards each RPC to the corresponding daemon
// operation; the client wraps net/rpc/jsonrpc with typed call helpers so
// command code never touches raw RPC plumbing.
package ipc
