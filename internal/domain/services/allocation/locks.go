package allocation

import (
	"sync"

	"github.com/google/uuid"
)

// ringLocks serialises mutations per ring. Rings never contend with each other.
type ringLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*ringLock
}

type ringLock struct {
	sync.Mutex
	refs int
}

func newRingLocks() *ringLocks {
	return &ringLocks{locks: make(map[uuid.UUID]*ringLock)}
}

// Lock blocks until the caller holds the lock for id and returns its release func.
func (l *ringLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &ringLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *ringLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
