package service

import (
	"sync"

	"github.com/google/uuid"
)

// dealLocks serializes evaluations per deal inside one process. Entries are
// reference-counted so the map does not grow with every deal ever touched.
// The optimistic version column on deals remains the cross-process guard;
// this lock just keeps one process from burning its own retry budget racing
// against itself.
type dealLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*dealLock
}

type dealLock struct {
	mu   sync.Mutex
	refs int
}

func newDealLocks() *dealLocks {
	return &dealLocks{locks: make(map[uuid.UUID]*dealLock)}
}

// acquire blocks until the caller holds the deal's lock and returns the
// release function.
func (d *dealLocks) acquire(dealID uuid.UUID) func() {
	d.mu.Lock()
	entry, ok := d.locks[dealID]
	if !ok {
		entry = &dealLock{}
		d.locks[dealID] = entry
	}
	entry.refs++
	d.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		d.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(d.locks, dealID)
		}
		d.mu.Unlock()
	}
}
