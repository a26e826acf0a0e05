// Package idempotency remembers which order an Idempotency-Key produced so a
// retried checkout returns the original order instead of placing a new one.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Store maps (user, key) to the ID of the order created for it.
type Store interface {
	Get(ctx context.Context, userID, key string) (orderID string, found bool, err error)
	// Put records orderID unless the key is already taken; the first writer wins.
	Put(ctx context.Context, userID, key, orderID string) error
	Close() error
}

func storeKey(userID, key string) string {
	return "idempotency:checkout:" + userID + ":" + key
}

type entry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

func (s *MemoryStore) Get(_ context.Context, userID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := storeKey(userID, key)
	e, ok := s.entries[k]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, k)
		return "", false, nil
	}
	return e.orderID, true, nil
}

func (s *MemoryStore) Put(_ context.Context, userID, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := storeKey(userID, key)
	if e, ok := s.entries[k]; ok && s.now().Before(e.expiresAt) {
		return nil
	}
	s.entries[k] = entry{orderID: orderID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
