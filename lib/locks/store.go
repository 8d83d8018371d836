package locks

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Store maps lock ids to their ServerLock. A lock is created on first
// checkout and dropped as soon as it is empty again.
//
// Thread-safety: all methods are safe for concurrent use. Checkouts of the
// same id are serialized, checkouts of different ids run in parallel.
type Store struct {
	locks  *xsync.MapOf[LockID, *ServerLock]
	greedy bool
}

// NewStore creates an empty store. greedy selects the arbitration mode of
// the locks it creates.
func NewStore(greedy bool) *Store {
	return &Store{
		locks:  xsync.NewMapOf[LockID, *ServerLock](),
		greedy: greedy,
	}
}

// CheckOut returns the lock for id with exclusive access, creating it if
// necessary. Every CheckOut must be paired with a CheckIn.
func (s *Store) CheckOut(id LockID) *ServerLock {
	for {
		l, _ := s.locks.LoadOrCompute(id, func() *ServerLock {
			return NewServerLock(id, s.greedy)
		})
		l.mu.Lock()
		if !l.removed {
			return l
		}
		// removed while we were waiting for it, a fresh one will be created
		l.mu.Unlock()
	}
}

// CheckOutIfPresent is like CheckOut but does not create missing locks. It
// returns nil if no lock exists for id.
func (s *Store) CheckOutIfPresent(id LockID) *ServerLock {
	for {
		l, ok := s.locks.Load(id)
		if !ok {
			return nil
		}
		l.mu.Lock()
		if !l.removed {
			return l
		}
		l.mu.Unlock()
	}
}

// CheckIn releases a checked out lock. Empty locks are removed here, so a
// lock never outlives the last context that referenced it.
func (s *Store) CheckIn(l *ServerLock) {
	if l.IsEmpty() && !l.removed {
		s.remove(l)
	}
	l.mu.Unlock()
}

// IDs returns the ids of all live locks
func (s *Store) IDs() []LockID {
	ids := make([]LockID, 0, s.locks.Size())
	s.locks.Range(func(id LockID, _ *ServerLock) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Len returns the number of live locks
func (s *Store) Len() int {
	return s.locks.Size()
}

// remove must be called with l checked out
func (s *Store) remove(l *ServerLock) {
	l.removed = true
	s.locks.Compute(l.id, func(current *ServerLock, loaded bool) (*ServerLock, bool) {
		// keep the entry if it was replaced by a newer lock
		return current, !loaded || current == l
	})
}
