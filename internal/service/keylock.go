package service

import "sync"

// keyLock hands out one mutex per key, serializing the delete-then-insert
// phase of concurrent ingestions of the same identity key. Different keys
// never contend. Mutexes are kept for the process lifetime; the key space is
// bounded by the number of distinct repositories seen.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (l *keyLock) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
