package eviction

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Fake map and entries
// --------------------------------------------------------------------------

type fakeMap struct {
	max, tti, ttl int
	entries       map[string]any
	requested     []int
}

func newFakeMap(max, tti, ttl int) *fakeMap {
	return &fakeMap{max: max, tti: tti, ttl: ttl, entries: make(map[string]any)}
}

func (m *fakeMap) MaxTotalCount() int { return m.max }
func (m *fakeMap) Size() int          { return len(m.entries) }
func (m *fakeMap) TTISeconds() int    { return m.tti }
func (m *fakeMap) TTLSeconds() int    { return m.ttl }

// RandomSamples is deterministic: keys in sorted order
func (m *fakeMap) RandomSamples(count int, ignore ObjectIDSet) map[string]any {
	m.requested = append(m.requested, count)
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(map[string]any)
	for _, k := range keys {
		if len(out) >= count {
			break
		}
		v := m.entries[k]
		if ref, ok := v.(ObjectID); ok && ignore.Contains(ref) {
			continue
		}
		out[k] = v
	}
	return out
}

func (m *fakeMap) Evict(candidates map[string]any) int {
	n := 0
	for k, v := range candidates {
		if cur, ok := m.entries[k]; ok && cur == v {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

type fakeEntry struct{ evictable bool }

func (e *fakeEntry) CanEvict(int, int) bool { return e.evictable }

// --------------------------------------------------------------------------
// Fake object manager
// --------------------------------------------------------------------------

type fakeObject struct {
	id    ObjectID
	state any
}

func (o *fakeObject) ID() ObjectID { return o.id }
func (o *fakeObject) State() any   { return o.state }

type fakeTxn struct{ objects *fakeObjects }

func (t fakeTxn) Commit() error {
	t.objects.mu.Lock()
	defer t.objects.mu.Unlock()
	t.objects.commits++
	return nil
}

// fakeObjects implements ObjectManager, ManagedObjectStore,
// ClientStateManager and TransactionProvider
type fakeObjects struct {
	mu          sync.Mutex
	objs        map[ObjectID]*fakeObject
	outstanding int
	commits     int
	faulted     []ObjectID
	nextID      ObjectID

	// called on every checkout, outside of mu
	onGet func(id ObjectID)
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objs: make(map[ObjectID]*fakeObject), nextID: 100}
}

func (f *fakeObjects) add(state any) ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.objs[f.nextID] = &fakeObject{id: f.nextID, state: state}
	return f.nextID
}

// addMap creates a map with n entries. Plain maps get string values, with
// entries set every value references a new entry object.
func (f *fakeObjects) addMap(m *fakeMap, n int, evictable func(i int) bool) ObjectID {
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("k%03d", i)
		if evictable == nil {
			m.entries[key] = fmt.Sprintf("v%d", i)
			continue
		}
		m.entries[key] = f.add(&fakeEntry{evictable: evictable(i)})
	}
	return f.add(m)
}

func (f *fakeObjects) GetObjectByIDOrNull(id ObjectID) ManagedObject {
	if f.onGet != nil {
		f.onGet(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objs[id]
	if !ok {
		return nil
	}
	f.outstanding++
	return o
}

func (f *fakeObjects) ReleaseReadOnly(ManagedObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding--
}

func (f *fakeObjects) ReleaseAndCommit(txn Transaction, _ ManagedObject) error {
	err := txn.Commit()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding--
	return err
}

func (f *fakeObjects) NewTransaction() Transaction { return fakeTxn{objects: f} }

func (f *fakeObjects) AllEvictableObjectIDs() ObjectIDSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := NewObjectIDSet()
	for id, o := range f.objs {
		if _, ok := o.state.(EvictableMap); ok {
			ids.Add(id)
		}
	}
	return ids
}

func (f *fakeObjects) AddAllReferencedIDsTo(set ObjectIDSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.faulted {
		set.Add(id)
	}
}

func (f *fakeObjects) requireReleased(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, 0, f.outstanding, "unreleased checkouts")
}

// --------------------------------------------------------------------------
// Recording sink
// --------------------------------------------------------------------------

type recordingSink struct {
	mu       sync.Mutex
	contexts []Context
}

func (s *recordingSink) Add(ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = append(s.contexts, ctx)
}

func (s *recordingSink) all() []Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.contexts)
}

func newTestManager(objs *fakeObjects, cfg Config) (*Manager, *recordingSink, *Stats) {
	stats := NewStats()
	m := NewManager(objs, objs, objs, objs, cfg, stats)
	sink := &recordingSink{}
	m.SetSink(sink)
	return m, sink, stats
}
