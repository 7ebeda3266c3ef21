package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the counter/mark store abstraction: get/set with TTL plus the
// two atomic primitives the guards rely on. Implementations must make
// IncrementWithExpiry and SetNX atomic so correctness holds across
// concurrent process instances; no in-process locking is layered on top.
type Store interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with a TTL (0 means no expiry)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent; returns whether it was set
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// IncrementWithExpiry atomically increments the counter at key,
	// starting its expiry window on first increment, and returns the new count
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store for tests and single-process
// deployments. Constructed once per process; not suitable for multi-process
// rate limiting.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	count    int64
	expireAt time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expireAt.IsZero() && now.After(e.expireAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key, time.Now())
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expireAt: expiry(ttl)}
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key, time.Now()); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expireAt: expiry(ttl)}
	return true, nil
}

func (m *MemoryStore) IncrementWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key, time.Now())
	if !ok {
		e = memoryEntry{expireAt: expiry(ttl)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
