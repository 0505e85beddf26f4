package engine

import "sync"

// lockTable hands out one mutex per cache key so concurrent misses on the
// same key collapse into a single upstream fetch. Entries are refcounted and
// removed when the last holder releases, keeping the table bounded by the
// number of in-flight fetches rather than by the symbol universe.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the per-key mutex is held and returns the release
// function. Release exactly once.
func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.locks[key]
	if !ok {
		entry = &lockEntry{}
		t.locks[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// size reports how many keys currently have an in-flight fetch.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
