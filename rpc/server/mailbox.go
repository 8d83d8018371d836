package server

import (
	"sync"

	"github.com/ValentinKolb/dSO/lib/locks"
	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// Mailboxes is the locks.ResponseSink of the server. Events are queued per
// client until the client's next request or poll picks them up.
//
// Thread-safety: all methods are safe for concurrent use.
type Mailboxes struct {
	boxes *xsync.MapOf[locks.ClientID, *mailbox]
}

type mailbox struct {
	mu     sync.Mutex
	events []common.LockEvent
}

// NewMailboxes creates an empty set of mailboxes
func NewMailboxes() *Mailboxes {
	return &Mailboxes{boxes: xsync.NewMapOf[locks.ClientID, *mailbox]()}
}

// Add queues an event for its client
func (m *Mailboxes) Add(resp locks.Response) {
	box, _ := m.boxes.LoadOrCompute(resp.ClientID, func() *mailbox { return &mailbox{} })
	box.mu.Lock()
	box.events = append(box.events, eventToWire(resp))
	box.mu.Unlock()
}

// Drain removes and returns all queued events of a client, oldest first
func (m *Mailboxes) Drain(cid locks.ClientID) []common.LockEvent {
	box, ok := m.boxes.Load(cid)
	if !ok {
		return nil
	}
	box.mu.Lock()
	defer box.mu.Unlock()
	events := box.events
	box.events = nil
	return events
}

// Remove drops the mailbox of a client and returns the number of events
// that were never delivered
func (m *Mailboxes) Remove(cid locks.ClientID) int {
	box, ok := m.boxes.LoadAndDelete(cid)
	if !ok {
		return 0
	}
	box.mu.Lock()
	defer box.mu.Unlock()
	return len(box.events)
}

// Len returns the number of clients with a mailbox
func (m *Mailboxes) Len() int {
	return m.boxes.Size()
}
