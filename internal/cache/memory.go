package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryStore is the in-process fallback map. Entries expire lazily on read;
// there is no background sweep.
type memoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]memoryEntry)}
}

func (m *memoryStore) get(key string, now time.Time) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return e.data, true
}

func (m *memoryStore) set(key string, data []byte, expiresAt time.Time) {
	m.mu.Lock()
	m.items[key] = memoryEntry{data: data, expiresAt: expiresAt}
	m.mu.Unlock()
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
