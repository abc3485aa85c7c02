package queueaccess

import (
	"fmt"

	"unspool/internal/ipc"
	"unspool/internal/queue"
)

// Session bundles an Access with whatever must be closed when the
// command is done with it (the IPC client or the store).
type Session struct {
	Access Access
	close  func() error
}

// Close releases the session's underlying connection.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback prefers talking to a running daemon over its socket
// and silently drops to direct store access when no daemon answers, so
// queue commands work either way.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{Access: NewIPCAccess(client), close: client.Close}, nil
		}
	}
	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}
