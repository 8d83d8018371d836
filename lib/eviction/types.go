package eviction

import (
	"fmt"
	"slices"
)

// ObjectID identifies a managed object (an evictable map or one of its
// entries)
type ObjectID uint64

func (id ObjectID) String() string { return fmt.Sprintf("ObjectID(%d)", uint64(id)) }

// ObjectIDSet is a set of object ids. The zero value is not usable, create
// sets with NewObjectIDSet.
type ObjectIDSet map[ObjectID]struct{}

func NewObjectIDSet(ids ...ObjectID) ObjectIDSet {
	s := make(ObjectIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ObjectIDSet) Add(id ObjectID) { s[id] = struct{}{} }

func (s ObjectIDSet) Contains(id ObjectID) bool {
	_, ok := s[id]
	return ok
}

func (s ObjectIDSet) Len() int { return len(s) }

// Sorted returns the ids in ascending order
func (s ObjectIDSet) Sorted() []ObjectID {
	out := make([]ObjectID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// EvictableMap is the state of a managed object whose entries can be
// evicted. Sample values are either an ObjectID referencing an entry object
// or a plain value.
type EvictableMap interface {
	MaxTotalCount() int
	Size() int
	TTISeconds() int
	TTLSeconds() int
	// RandomSamples returns up to count entries, skipping entries whose value
	// references an object in ignore
	RandomSamples(count int, ignore ObjectIDSet) map[string]any
	// Evict removes the candidates whose key still maps to the sampled value
	// and returns how many were removed
	Evict(candidates map[string]any) int
}

// EvictableEntry is the state of an entry object that decides about its own
// eligibility
type EvictableEntry interface {
	CanEvict(ttiSeconds, ttlSeconds int) bool
}

// ManagedObject is a checked out object
type ManagedObject interface {
	ID() ObjectID
	State() any
}

// Transaction is committed when a modified object is checked back in
type Transaction interface {
	Commit() error
}

type TransactionProvider interface {
	NewTransaction() Transaction
}

// ObjectManager hands out exclusive checkouts of managed objects. Every
// object returned by GetObjectByIDOrNull must be released exactly once.
type ObjectManager interface {
	// GetObjectByIDOrNull returns nil if the object does not exist
	GetObjectByIDOrNull(id ObjectID) ManagedObject
	ReleaseReadOnly(mo ManagedObject)
	ReleaseAndCommit(txn Transaction, mo ManagedObject) error
}

type ManagedObjectStore interface {
	AllEvictableObjectIDs() ObjectIDSet
}

// ClientStateManager knows which objects are faulted into connected clients
type ClientStateManager interface {
	AddAllReferencedIDsTo(set ObjectIDSet)
}

// --------------------------------------------------------------------------
// Eviction context
// --------------------------------------------------------------------------

// Context is one unit of eviction work: the samples taken from a map and the
// parameters they were taken with. It is treated as immutable once created.
type Context struct {
	ObjectID            ObjectID
	TargetMaxTotalCount int
	TTISeconds          int
	TTLSeconds          int
	Samples             map[string]any
	Overshoot           int
}

func (c Context) String() string {
	return fmt.Sprintf("Context{%s max=%d tti=%d ttl=%d overshoot=%d samples=%d}",
		c.ObjectID, c.TargetMaxTotalCount, c.TTISeconds, c.TTLSeconds, c.Overshoot, len(c.Samples))
}

// Sink accepts eviction contexts for asynchronous processing
type Sink interface {
	Add(ctx Context)
}
