// Package locks implements the lock coordinator: a central arbiter that
// grants WRITE (exclusive) and READ (shared) locks to many remote clients
// and implements monitor wait/notify on top of them.
//
// Core Components:
//
//   - ServerLock: the state of one lock id. It keeps a single ordered slice
//     of contexts (greedy holders, holders, pending, try-pending, waiters)
//     and implements lock, tryLock, unlock, wait, notify, interrupt, query,
//     reestablish, recall commit, timeouts and client cleanup.
//
//   - Store: lock id -> ServerLock, backed by an xsync.MapOf. Locks are
//     created on first checkout and removed as soon as they are empty.
//     CheckOut/CheckIn serialize all work on one lock id.
//
//   - Helper: the collaborators a lock needs while it handles a request
//     (response sink, timeout scheduler, statistics, store).
//
//   - Manager: routes requests through checkout/checkin and applies fired
//     timeouts from a queue on one goroutine.
//
// Greedy Leases:
//
//	In greedy mode (the default) a WRITE award goes to the whole client as a
//	lease (thread id VMThreadID). The client can then re-acquire the lock
//	locally without talking to the coordinator. READ awards turn every
//	queued READ into one READ lease per client. When another client
//	contends, the coordinator sends RECALL to the lease holders; at most one
//	recall is in flight per lock. The holder answers with a recall commit
//	listing what its threads actually hold, wait for and request, and
//	arbitration continues on that state.
//
//	Leases are not granted while waiters exist, otherwise a client could
//	keep notifying its own local waiters and starve remote ones.
//
// Responses:
//
//	Nothing blocks. Awards, rejections, recalls, wait timeouts and query
//	results are pushed into a ResponseSink addressed to (client, thread).
//
// Errors:
//
//	Protocol violations (upgrade, unlock without hold, wait/notify without a
//	WRITE hold, duplicate reestablish, recall commit without a lease) are
//	returned as *Error and never retried. Refused try-locks and timeouts are
//	ordinary responses.
//
// Usage Example:
//
//	mgr := locks.NewManager(sink, locks.DefaultOptions())
//	defer mgr.Close()
//
//	if err := mgr.Lock("orders", clientID, 1, locks.LevelWrite); err != nil {
//	    // protocol violation
//	}
//	// the AWARD arrives in sink
package locks
