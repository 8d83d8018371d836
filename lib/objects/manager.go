package objects

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dSO/lib/eviction"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("objects")

var (
	ErrNotFound  = errors.New("object not found")
	ErrNotAMap   = errors.New("object is not a map")
	ErrCommitted = errors.New("transaction already committed")
)

// --------------------------------------------------------------------------
// Managed objects and transactions
// --------------------------------------------------------------------------

// ManagedObject is one object in the table. Its state is only accessed while
// the object is checked out.
type ManagedObject struct {
	id      eviction.ObjectID
	state   any
	version uint64

	mu      sync.Mutex // held while checked out
	deleted bool
}

func (mo *ManagedObject) ID() eviction.ObjectID { return mo.id }
func (mo *ManagedObject) State() any            { return mo.state }

// Version is incremented by every commit
func (mo *ManagedObject) Version() uint64 { return mo.version }

type Transaction struct {
	id        uint64
	committed atomic.Bool
	mgr       *Manager
}

func (t *Transaction) ID() uint64 { return t.id }

func (t *Transaction) Commit() error {
	if t.committed.Swap(true) {
		return fmt.Errorf("%w: txn %d", ErrCommitted, t.id)
	}
	t.mgr.commits.Add(1)
	Logger.Debugf("committed txn %d", t.id)
	return nil
}

// --------------------------------------------------------------------------
// Manager
// --------------------------------------------------------------------------

// Manager is an in-memory object table with exclusive checkout. It serves
// as eviction.ObjectManager, eviction.ManagedObjectStore and
// eviction.TransactionProvider.
//
// Thread-safety: all methods are safe for concurrent use. A goroutine must
// not check out the same object twice.
type Manager struct {
	objects *xsync.MapOf[eviction.ObjectID, *ManagedObject]
	nextID  atomic.Uint64
	nextTxn atomic.Uint64
	commits atomic.Uint64
	clock   func() time.Time
}

// NewManager creates an empty table. clock defaults to time.Now.
func NewManager(clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		objects: xsync.NewMapOf[eviction.ObjectID, *ManagedObject](),
		clock:   clock,
	}
}

// CreateMap adds an evictable map and returns its id
func (m *Manager) CreateMap(maxTotalCount, ttiSeconds, ttlSeconds int) eviction.ObjectID {
	return m.add(NewServerMap(maxTotalCount, ttiSeconds, ttlSeconds))
}

// CreateEntry adds an entry object and returns its id
func (m *Manager) CreateEntry(value string, ttiSeconds, ttlSeconds int) eviction.ObjectID {
	return m.add(newEntryState(value, ttiSeconds, ttlSeconds, m.clock))
}

func (m *Manager) add(state any) eviction.ObjectID {
	id := eviction.ObjectID(m.nextID.Add(1))
	m.objects.Store(id, &ManagedObject{id: id, state: state})
	return id
}

// Delete removes an object. Deleting a map deletes its entries as well.
func (m *Manager) Delete(id eviction.ObjectID) bool {
	mo := m.checkout(id)
	if mo == nil {
		return false
	}
	mo.deleted = true
	m.objects.Delete(id)
	var refs []eviction.ObjectID
	if sm, ok := mo.state.(*ServerMap); ok {
		refs = sm.references()
	}
	mo.mu.Unlock()

	for _, ref := range refs {
		m.Delete(ref)
	}
	return true
}

// Len returns the number of live objects
func (m *Manager) Len() int { return m.objects.Size() }

// Commits returns the number of committed transactions
func (m *Manager) Commits() uint64 { return m.commits.Load() }

// --------------------------------------------------------------------------
// eviction.ObjectManager
// --------------------------------------------------------------------------

// GetObjectByIDOrNull checks an object out, blocking while another goroutine
// holds it. It returns nil if the object does not exist.
func (m *Manager) GetObjectByIDOrNull(id eviction.ObjectID) eviction.ManagedObject {
	mo := m.checkout(id)
	if mo == nil {
		return nil
	}
	return mo
}

func (m *Manager) ReleaseReadOnly(mo eviction.ManagedObject) {
	mo.(*ManagedObject).mu.Unlock()
}

// ReleaseAndCommit bumps the object version, commits txn and checks the
// object in. Entries the object dropped are deleted afterwards.
func (m *Manager) ReleaseAndCommit(txn eviction.Transaction, mo eviction.ManagedObject) error {
	o := mo.(*ManagedObject)
	o.version++
	var garbage []eviction.ObjectID
	if sm, ok := o.state.(*ServerMap); ok {
		garbage = sm.takeGarbage()
	}
	err := txn.Commit()
	o.mu.Unlock()

	for _, id := range garbage {
		m.Delete(id)
	}
	return err
}

func (m *Manager) NewTransaction() eviction.Transaction {
	return &Transaction{id: m.nextTxn.Add(1), mgr: m}
}

// AllEvictableObjectIDs returns the ids of all maps
func (m *Manager) AllEvictableObjectIDs() eviction.ObjectIDSet {
	ids := eviction.NewObjectIDSet()
	m.objects.Range(func(id eviction.ObjectID, mo *ManagedObject) bool {
		// the state type never changes, no checkout needed
		if _, ok := mo.state.(*ServerMap); ok {
			ids.Add(id)
		}
		return true
	})
	return ids
}

func (m *Manager) checkout(id eviction.ObjectID) *ManagedObject {
	mo, ok := m.objects.Load(id)
	if !ok {
		return nil
	}
	mo.mu.Lock()
	if mo.deleted {
		mo.mu.Unlock()
		return nil
	}
	return mo
}

// --------------------------------------------------------------------------
// Map operations
// --------------------------------------------------------------------------

// Put stores value under key in a new entry object. The replaced entry is
// deleted on commit.
func (m *Manager) Put(mapID eviction.ObjectID, key, value string, ttiSeconds, ttlSeconds int) (eviction.ObjectID, error) {
	entry := m.CreateEntry(value, ttiSeconds, ttlSeconds)
	mo, sm, err := m.checkoutMap(mapID)
	if err != nil {
		m.Delete(entry)
		return 0, err
	}
	sm.Put(key, entry)
	return entry, m.ReleaseAndCommit(m.NewTransaction(), mo)
}

// PutInline stores a plain value without an entry object
func (m *Manager) PutInline(mapID eviction.ObjectID, key, value string) error {
	mo, sm, err := m.checkoutMap(mapID)
	if err != nil {
		return err
	}
	sm.Put(key, value)
	return m.ReleaseAndCommit(m.NewTransaction(), mo)
}

// Get returns the value under key and the entry object holding it (0 for
// inline values). Expired entries are reported as missing.
func (m *Manager) Get(mapID eviction.ObjectID, key string) (string, eviction.ObjectID, bool, error) {
	mo, sm, err := m.checkoutMap(mapID)
	if err != nil {
		return "", 0, false, err
	}
	v, ok := sm.Get(key)
	tti, ttl := sm.TTISeconds(), sm.TTLSeconds()
	mo.mu.Unlock()
	if !ok {
		return "", 0, false, nil
	}

	switch v := v.(type) {
	case string:
		return v, 0, true, nil
	case eviction.ObjectID:
		entry := m.checkout(v)
		if entry == nil {
			// evicted after we read the map
			return "", 0, false, nil
		}
		defer entry.mu.Unlock()
		es := entry.state.(*EntryState)
		if es.Expired(tti, ttl) {
			return "", 0, false, nil
		}
		es.Touch()
		return es.Value(), v, true, nil
	}
	return "", 0, false, nil
}

// Remove deletes key from the map
func (m *Manager) Remove(mapID eviction.ObjectID, key string) (bool, error) {
	mo, sm, err := m.checkoutMap(mapID)
	if err != nil {
		return false, err
	}
	_, ok := sm.Remove(key)
	return ok, m.ReleaseAndCommit(m.NewTransaction(), mo)
}

func (m *Manager) Size(mapID eviction.ObjectID) (int, error) {
	mo, sm, err := m.checkoutMap(mapID)
	if err != nil {
		return 0, err
	}
	defer mo.mu.Unlock()
	return sm.Size(), nil
}

// IsMap returns nil if id names a live map. Otherwise the error wraps
// ErrNotFound or ErrNotAMap.
func (m *Manager) IsMap(id eviction.ObjectID) error {
	mo, _, err := m.checkoutMap(id)
	if err != nil {
		return err
	}
	mo.mu.Unlock()
	return nil
}

func (m *Manager) checkoutMap(id eviction.ObjectID) (*ManagedObject, *ServerMap, error) {
	mo := m.checkout(id)
	if mo == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sm, ok := mo.state.(*ServerMap)
	if !ok {
		mo.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAMap, id)
	}
	return mo, sm, nil
}
