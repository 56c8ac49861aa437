package service

import "sync"

// aggregateLocks serializes operations per shop-drug aggregate. Stock
// movements read the full batch collection, mutate it in multiple steps and
// write it back; without per-key serialization concurrent sales could
// double-consume the same batch. Operations on different aggregates run in
// parallel.
type aggregateLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAggregateLocks() *aggregateLocks {
	return &aggregateLocks{locks: make(map[string]*lockEntry)}
}

// Acquire locks the key and returns the release function. Entries are
// reference counted so the map does not grow without bound.
func (l *aggregateLocks) Acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
