package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"reelqueue/internal/config"
	"reelqueue/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem queues externalID for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, externalID int64, title string) *queue.Item {
	t.Helper()

	item, _, err := store.Upsert(context.Background(), externalID, title)
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}

// MustGet reloads an item by internal id.
func MustGet(t testing.TB, store *queue.Store, id int64) *queue.Item {
	t.Helper()

	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID(%d): %v", id, err)
	}
	return item
}

// Clock is a settable time source for store timestamps and leases.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
