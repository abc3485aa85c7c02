package testsupport

import (
	"context"
	"testing"

	"unspool/internal/config"
	"unspool/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close queue store: %v", err)
		}
	})
	return store
}

// SeedItem inserts a queue item in the given status and returns it.
func SeedItem(t testing.TB, store *queue.Store, source string, status queue.Status) *queue.Item {
	t.Helper()

	item, err := store.NewPending(context.Background(), source, "")
	if err != nil {
		t.Fatalf("seed queue item: %v", err)
	}
	if item.Status != status {
		item.Status = status
		if err := store.Update(context.Background(), item); err != nil {
			t.Fatalf("update seeded item: %v", err)
		}
	}
	return item
}
