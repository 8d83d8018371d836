package objects

import (
	"github.com/ValentinKolb/dSO/lib/eviction"
	"github.com/puzpuzpuz/xsync/v3"
)

// ClientStates tracks which objects are faulted into which client. It
// implements eviction.ClientStateManager.
//
// Thread-safety: all methods are safe for concurrent use.
type ClientStates struct {
	refs *xsync.MapOf[string, *xsync.MapOf[eviction.ObjectID, struct{}]]
}

func NewClientStates() *ClientStates {
	return &ClientStates{
		refs: xsync.NewMapOf[string, *xsync.MapOf[eviction.ObjectID, struct{}]](),
	}
}

// AddReference records that client holds the given objects
func (c *ClientStates) AddReference(client string, ids ...eviction.ObjectID) {
	set, _ := c.refs.LoadOrCompute(client, func() *xsync.MapOf[eviction.ObjectID, struct{}] {
		return xsync.NewMapOf[eviction.ObjectID, struct{}]()
	})
	for _, id := range ids {
		set.Store(id, struct{}{})
	}
}

// RemoveReferences records that client flushed the given objects
func (c *ClientStates) RemoveReferences(client string, ids ...eviction.ObjectID) {
	set, ok := c.refs.Load(client)
	if !ok {
		return
	}
	for _, id := range ids {
		set.Delete(id)
	}
}

// RemoveClient forgets a disconnected client and returns how many
// references it held
func (c *ClientStates) RemoveClient(client string) int {
	set, ok := c.refs.LoadAndDelete(client)
	if !ok {
		return 0
	}
	return set.Size()
}

// References returns the objects held by client
func (c *ClientStates) References(client string) eviction.ObjectIDSet {
	out := eviction.NewObjectIDSet()
	if set, ok := c.refs.Load(client); ok {
		set.Range(func(id eviction.ObjectID, _ struct{}) bool {
			out.Add(id)
			return true
		})
	}
	return out
}

// AddAllReferencedIDsTo adds every object held by any client to set
func (c *ClientStates) AddAllReferencedIDsTo(set eviction.ObjectIDSet) {
	c.refs.Range(func(_ string, ids *xsync.MapOf[eviction.ObjectID, struct{}]) bool {
		ids.Range(func(id eviction.ObjectID, _ struct{}) bool {
			set.Add(id)
			return true
		})
		return true
	})
}
