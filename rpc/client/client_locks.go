package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
)

// vmThread is the thread id of a greedy lease
const vmThread = ^uint64(0)

// ErrClosed is returned by calls on a closed client
var ErrClosed = errors.New("lock client is closed")

// NewRPCLocks creates a new lock client with a fresh client id
// The function takes a config, a transport and a serializer as parameters
func NewRPCLocks(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCLocks, error) {
	adapter, err := newClientAdapter(serviceLocks, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCLocks{
		rpcClientAdapter: adapter,
		leases:           make(map[string]string),
	}, nil
}

// RPCLocks is the client side of the lock coordinator. The server answers
// lock requests with events; the client keeps events nobody asked for yet
// and polls for more while a call blocks.
//
// Greedy leases (awards to the whole client) are remembered. A request that
// a lease covers returns right away, the caller then arbitrates between its
// own threads. Recalls are returned by Poll and must be answered with
// RecallCommit.
//
// Thread-safety: all methods are safe for concurrent use.
type RPCLocks struct {
	rpcClientAdapter

	mu      sync.Mutex
	pending []common.LockEvent
	leases  map[string]string // lock id -> lease level
	closed  bool
}

// --------------------------------------------------------------------------
// Lock operations
// --------------------------------------------------------------------------

// Lock blocks until the lock is awarded or ctx is done
func (c *RPCLocks) Lock(ctx context.Context, lockID string, threadID uint64, level string) error {
	if err := c.send(common.NewLockRequest(lockID, c.clientID, threadID, level)); err != nil {
		return err
	}
	if c.granted(lockID, threadID, level) {
		return nil
	}
	_, err := c.await(ctx, awardFor(lockID, threadID))
	return err
}

// TryLock requests the lock and waits up to timeout for it. It returns false
// if the server rejected the request.
func (c *RPCLocks) TryLock(ctx context.Context, lockID string, threadID uint64, level string, timeout time.Duration) (bool, error) {
	if err := c.send(common.NewTryLockRequest(lockID, c.clientID, threadID, level, timeout.Milliseconds())); err != nil {
		return false, err
	}
	if c.granted(lockID, threadID, level) {
		return true, nil
	}
	ev, err := c.await(ctx, func(ev common.LockEvent) bool {
		return awardFor(lockID, threadID)(ev) || (ev.Type == "REJECTED" && ev.LockID == lockID && ev.ThreadID == threadID)
	})
	if err != nil {
		return false, err
	}
	return ev.Type == "AWARD", nil
}

// Unlock releases a hold
func (c *RPCLocks) Unlock(lockID string, threadID uint64) error {
	if threadID == vmThread {
		c.mu.Lock()
		delete(c.leases, lockID)
		c.mu.Unlock()
	}
	return c.send(common.NewUnlockRequest(lockID, c.clientID, threadID))
}

// Wait releases a write hold, waits for a notify (or the timeout, if greater
// than zero) and blocks until the lock is awarded again. It returns false if
// the wait timed out.
func (c *RPCLocks) Wait(ctx context.Context, lockID string, threadID uint64, timeout time.Duration) (bool, error) {
	if err := c.send(common.NewWaitRequest(lockID, c.clientID, threadID, timeout.Milliseconds())); err != nil {
		return false, err
	}
	notified := true
	for {
		ev, err := c.await(ctx, func(ev common.LockEvent) bool {
			return awardFor(lockID, threadID)(ev) || (ev.Type == "WAIT_TIMEOUT" && ev.LockID == lockID && ev.ThreadID == threadID)
		})
		if err != nil {
			return false, err
		}
		if ev.Type == "AWARD" {
			return notified, nil
		}
		notified = false
	}
}

// Notify wakes the earliest waiter, or all waiters, and returns them
func (c *RPCLocks) Notify(lockID string, threadID uint64, all bool) ([]common.LockContext, error) {
	resp, err := c.invokeAndKeep(common.NewNotifyRequest(lockID, c.clientID, threadID, all))
	if err != nil {
		return nil, err
	}
	return resp.Contexts, nil
}

// Interrupt wakes a specific waiting thread of this client
func (c *RPCLocks) Interrupt(lockID string, threadID uint64) error {
	return c.send(common.NewInterruptRequest(lockID, c.clientID, threadID))
}

// Query returns the holders and waiters of a lock and the number of pending
// requests
func (c *RPCLocks) Query(ctx context.Context, lockID string, threadID uint64) (common.LockEvent, error) {
	if err := c.send(common.NewQueryRequest(lockID, c.clientID, threadID)); err != nil {
		return common.LockEvent{}, err
	}
	return c.await(ctx, func(ev common.LockEvent) bool {
		return ev.Type == "QUERY_RESULT" && ev.LockID == lockID && ev.ThreadID == threadID
	})
}

// RecallCommit hands a recalled lease back. contexts are the threads that
// still hold, wait for or request the lock under the lease.
func (c *RPCLocks) RecallCommit(lockID string, contexts []common.LockContext) error {
	c.mu.Lock()
	delete(c.leases, lockID)
	c.mu.Unlock()
	return c.send(common.NewRecallCommitRequest(lockID, c.clientID, contexts))
}

// Reestablish replays the lock state of this client after a server restart
func (c *RPCLocks) Reestablish(contexts []common.LockContext) error {
	return c.send(common.NewReestablishRequest(c.clientID, contexts))
}

// Poll fetches new events and returns every event no call is waiting for
func (c *RPCLocks) Poll() ([]common.LockEvent, error) {
	if err := c.send(common.NewPollRequest(c.clientID)); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.pending
	c.pending = nil
	return events, nil
}

// Close disconnects the client. The server releases everything it held.
func (c *RPCLocks) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.disconnect()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invokeAndKeep sends a request and stores the events of the response, also
// if the request failed
func (c *RPCLocks) invokeAndKeep(req *common.Message) (*common.Message, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	resp, err := c.invoke(req)
	if resp != nil {
		c.keep(resp.Events)
	}
	return resp, err
}

func (c *RPCLocks) send(req *common.Message) error {
	_, err := c.invokeAndKeep(req)
	return err
}

func (c *RPCLocks) keep(events []common.LockEvent) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range events {
		if ev.Type == "AWARD" && ev.ThreadID == vmThread {
			c.leases[ev.LockID] = ev.Level
		}
	}
	c.pending = append(c.pending, events...)
}

// take removes and returns the first kept event matching match
func (c *RPCLocks) take(match func(common.LockEvent) bool) (common.LockEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ev := range c.pending {
		if match(ev) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return ev, true
		}
	}
	return common.LockEvent{}, false
}

// await polls until an event matching match arrives or ctx is done
func (c *RPCLocks) await(ctx context.Context, match func(common.LockEvent) bool) (common.LockEvent, error) {
	ticker := time.NewTicker(c.config.PollInterval())
	defer ticker.Stop()
	for {
		if ev, ok := c.take(match); ok {
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return common.LockEvent{}, ctx.Err()
		case <-ticker.C:
		}
		if err := c.send(common.NewPollRequest(c.clientID)); err != nil {
			return common.LockEvent{}, err
		}
	}
}

// granted takes an award that already arrived, or reports whether a greedy
// lease of this client covers the request
func (c *RPCLocks) granted(lockID string, threadID uint64, level string) bool {
	if _, ok := c.take(awardFor(lockID, threadID)); ok {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lease, ok := c.leases[lockID]
	return ok && (lease == "WRITE" || lease == strings.ToUpper(level))
}

// awardFor matches the award of a thread, or a lease award of the client
func awardFor(lockID string, threadID uint64) func(common.LockEvent) bool {
	return func(ev common.LockEvent) bool {
		return ev.Type == "AWARD" && ev.LockID == lockID && (ev.ThreadID == threadID || ev.ThreadID == vmThread)
	}
}
