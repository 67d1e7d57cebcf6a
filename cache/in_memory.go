package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Store with lazy expiration. It mirrors
// the Redis semantics closely enough for tests and single-node deployments;
// production multi-process setups should use RedisStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
	now     func() time.Time
}

type inMemoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: map[string]inMemoryEntry{}, now: time.Now}
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return "", &NotFoundError{Key: key}
	}
	return entry.value, nil
}

// SetEx implements Store.
func (s *InMemoryStore) SetEx(_ context.Context, key, value string, ttlSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = inMemoryEntry{
		value:     value,
		expiresAt: s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}
