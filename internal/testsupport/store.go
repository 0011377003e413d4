package testsupport

import (
	"context"
	"testing"

	"abstractor/internal/config"
	"abstractor/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSearch creates a pending search for tests using the provided store.
func NewSearch(t testing.TB, store *queue.Store, address string) *queue.Search {
	t.Helper()

	search, err := store.NewSearch(context.Background(), address, "Jefferson", "")
	if err != nil {
		t.Fatalf("store.NewSearch: %v", err)
	}
	return search
}
