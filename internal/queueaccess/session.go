package queueaccess

import (
	"fmt"

	"reelqueue/internal/config"
	"reelqueue/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open opens the queue database named by cfg. Administration works while
// the daemon runs: both processes share the SQLite file.
func Open(cfg *config.Config, opts ...queue.Option) (Session, error) {
	return OpenWith(func() (*queue.Store, error) { return queue.Open(cfg, opts...) })
}

// OpenWith opens a session using openStore.
func OpenWith(openStore func() (*queue.Store, error)) (Session, error) {
	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
