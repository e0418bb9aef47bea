package kv

import "sync"

// KeyLocks is a table of exclusively held keys. TryLock fails at once when
// the key is already held; Lock waits for it.
type KeyLocks struct {
	mu       sync.Mutex
	released *sync.Cond
	held     map[string]struct{}
}

// NewKeyLocks creates an empty lock table.
func NewKeyLocks() *KeyLocks {
	l := &KeyLocks{held: make(map[string]struct{})}
	l.released = sync.NewCond(&l.mu)
	return l
}

// TryLock claims key. Returns false if another writer holds it.
func (l *KeyLocks) TryLock(key []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := string(key)
	if _, ok := l.held[k]; ok {
		return false
	}
	l.held[k] = struct{}{}
	return true
}

// Lock claims key, waiting while another writer holds it.
func (l *KeyLocks) Lock(key []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := string(key)
	for {
		if _, ok := l.held[k]; !ok {
			break
		}
		l.released.Wait()
	}
	l.held[k] = struct{}{}
}

// Unlock releases key. Releasing a key that is not held is a no-op.
func (l *KeyLocks) Unlock(key []byte) {
	l.mu.Lock()
	delete(l.held, string(key))
	l.mu.Unlock()
	l.released.Broadcast()
}

// Held returns the number of keys currently locked.
func (l *KeyLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
