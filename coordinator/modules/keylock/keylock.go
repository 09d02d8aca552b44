package keylock

import "sync"

// KeyLock hands out one mutex per key so that every mutating sequence on a
// proposal (check preconditions, mutate, persist) runs as a single critical
// section for that proposal id, while different proposals stay independent.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock blocks until the key's section is free and returns the matching
// unlock function. Entries are reference-counted and removed once the last
// holder releases, so the map does not grow with the number of proposals
// ever seen.
func (kl *KeyLock) Lock(key string) (unlock func()) {
	kl.mu.Lock()
	e, ok := kl.entries[key]
	if !ok {
		e = &entry{}
		kl.entries[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		kl.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(kl.entries, key)
		}
		kl.mu.Unlock()
	}
}
