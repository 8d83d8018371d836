package locks

import "time"

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// ResponseSink receives the events a lock emits (awards, rejections, recalls,
// wait timeouts and query results).
//
// Thread-safety: implementations must be safe for concurrent use. Locks with
// different ids emit into the same sink in parallel.
type ResponseSink interface {
	Add(resp Response)
}

// TimerTask is a scheduled timeout that can be cancelled
type TimerTask interface {
	// ID is unique per scheduled task. A timeout event carries the id of the
	// task that produced it, so a fired event can be matched to its context.
	ID() uint64
	// Cancel stops the task. It returns false if the task already fired.
	Cancel() bool
}

// TimeoutScheduler schedules timeout events for TRY_PENDING and WAITER
// contexts. The event is delivered asynchronously; it never calls into a
// lock directly.
type TimeoutScheduler interface {
	Schedule(lockID LockID, clientID ClientID, threadID ThreadID, after time.Duration) TimerTask
}

// StatsRecorder records lock statistics
type StatsRecorder interface {
	RecordRequested(lockID LockID, clientID ClientID, threadID ThreadID, pending int)
	RecordAwarded(lockID LockID, clientID ClientID, threadID ThreadID, greedy bool)
	RecordReleased(lockID LockID, clientID ClientID, threadID ThreadID)
	RecordRejected(lockID LockID, clientID ClientID, threadID ThreadID)
	RecordHop(lockID LockID)
}

// Helper bundles the collaborators a ServerLock needs while it processes
// one request.
type Helper struct {
	Sink  ResponseSink
	Timer TimeoutScheduler
	Stats StatsRecorder
	Store *Store
}

// --------------------------------------------------------------------------
// No-op implementations
// --------------------------------------------------------------------------

type noopStats struct{}

func (noopStats) RecordRequested(LockID, ClientID, ThreadID, int) {}
func (noopStats) RecordAwarded(LockID, ClientID, ThreadID, bool)  {}
func (noopStats) RecordReleased(LockID, ClientID, ThreadID)       {}
func (noopStats) RecordRejected(LockID, ClientID, ThreadID)       {}
func (noopStats) RecordHop(LockID)                                {}

// NoopStats returns a StatsRecorder that discards everything
func NoopStats() StatsRecorder { return noopStats{} }
