package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory. Used by tests and
// ephemeral CLI runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(keys))
	for i, k := range keys {
		v, ok := m.values[k]
		out[i] = Entry{Key: k, Value: v, Present: ok}
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) RemoveAll(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }
