package locks

import (
	"errors"
	"time"

	"github.com/ValentinKolb/dSO/lib/util"
)

// Options configures a Manager
type Options struct {
	Greedy    bool             // hand out greedy leases and recall them under contention
	Stats     StatsRecorder    // nil = no statistics
	Scheduler TimeoutScheduler // nil = a Timer feeding the manager's timeout queue
}

// DefaultOptions returns greedy arbitration without statistics
func DefaultOptions() *Options {
	return &Options{Greedy: true}
}

// Manager routes lock operations to the ServerLock of their lock id. Every
// operation checks the lock out of the store, applies itself and checks the
// lock back in, so operations on one lock id are serialized.
//
// Timeouts are pushed onto a queue and applied by a single goroutine through
// the same checkout path.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	store    *Store
	helper   *Helper
	timeouts *util.Queue[TimeoutEvent]
}

// NewManager creates a manager that emits all responses into sink
func NewManager(sink ResponseSink, opts *Options) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	}
	stats := opts.Stats
	if stats == nil {
		stats = NoopStats()
	}

	m := &Manager{
		store:    NewStore(opts.Greedy),
		timeouts: util.NewQueue[TimeoutEvent](),
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = NewTimer(m.postTimeout)
	}
	m.helper = &Helper{
		Sink:  sink,
		Timer: scheduler,
		Stats: stats,
		Store: m.store,
	}

	go m.applyTimeouts()

	Logger.Infof("lock manager started (greedy=%t)", opts.Greedy)
	return m
}

// --------------------------------------------------------------------------
// Lock operations
// --------------------------------------------------------------------------

func (m *Manager) Lock(id LockID, cid ClientID, tid ThreadID, level Level) error {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	return m.logged(l.Lock(cid, tid, level, m.helper))
}

func (m *Manager) TryLock(id LockID, cid ClientID, tid ThreadID, level Level, timeout time.Duration) error {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	return m.logged(l.TryLock(cid, tid, level, timeout, m.helper))
}

func (m *Manager) Unlock(id LockID, cid ClientID, tid ThreadID) error {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	return m.logged(l.Unlock(cid, tid, m.helper))
}

func (m *Manager) Wait(id LockID, cid ClientID, tid ThreadID, timeout time.Duration) error {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	return m.logged(l.Wait(cid, tid, timeout, m.helper))
}

func (m *Manager) Notify(id LockID, cid ClientID, tid ThreadID, action NotifyAction) ([]ClientContext, error) {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	notified, err := l.Notify(cid, tid, action, m.helper)
	return notified, m.logged(err)
}

func (m *Manager) Interrupt(id LockID, cid ClientID, tid ThreadID) {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	l.Interrupt(cid, tid, m.helper)
}

func (m *Manager) Query(id LockID, cid ClientID, tid ThreadID) {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	l.Query(cid, tid, m.helper)
}

func (m *Manager) RecallCommit(id LockID, cid ClientID, contexts []ClientContext) error {
	l := m.store.CheckOut(id)
	defer m.store.CheckIn(l)
	return m.logged(l.RecallCommit(cid, contexts, m.helper))
}

// Reestablish replays the contexts of a reconnecting client. Each context
// names its own lock. All contexts are applied, the errors are joined.
func (m *Manager) Reestablish(contexts []ClientContext) error {
	var errs []error
	for _, cc := range contexts {
		l := m.store.CheckOut(cc.LockID)
		if err := l.Reestablish(cc, m.helper); err != nil {
			errs = append(errs, m.logged(err))
		}
		m.store.CheckIn(l)
	}
	return errors.Join(errs...)
}

// TimerTimeout applies a fired timeout. Timeouts for locks that no longer
// exist are dropped.
func (m *Manager) TimerTimeout(ev TimeoutEvent) {
	l := m.store.CheckOutIfPresent(ev.LockID)
	if l == nil {
		Logger.Debugf("dropping timeout for removed lock %s", ev.LockID)
		return
	}
	defer m.store.CheckIn(l)
	l.TimerTimeout(ev, m.helper)
}

// ClearStateForNode removes all state of a disconnected client from every
// lock and returns how many locks became empty.
func (m *Manager) ClearStateForNode(cid ClientID) int {
	cleared := 0
	for _, id := range m.store.IDs() {
		l := m.store.CheckOutIfPresent(id)
		if l == nil {
			continue
		}
		if l.ClearStateForNode(cid, m.helper) {
			cleared++
		}
		m.store.CheckIn(l)
	}
	Logger.Infof("cleared lock state of client %s (%d locks released)", cid, cleared)
	return cleared
}

// --------------------------------------------------------------------------
// Diagnostics and lifecycle
// --------------------------------------------------------------------------

// Locks returns the ids of all live locks
func (m *Manager) Locks() []LockID {
	return m.store.IDs()
}

// Snapshot returns the contexts of one lock, or nil if it does not exist
func (m *Manager) Snapshot(id LockID) []ClientContext {
	l := m.store.CheckOutIfPresent(id)
	if l == nil {
		return nil
	}
	defer m.store.CheckIn(l)
	return l.Contexts()
}

// Close stops the timeout goroutine. Timers that fire afterward are dropped.
func (m *Manager) Close() {
	m.timeouts.Close()
	<-m.timeouts.Done()
}

func (m *Manager) postTimeout(ev TimeoutEvent) {
	if !m.timeouts.Push(ev) {
		Logger.Debugf("manager closed, dropping timeout for %s", ev.LockID)
	}
}

func (m *Manager) applyTimeouts() {
	for ev := range m.timeouts.Recv() {
		m.TimerTimeout(ev)
	}
}

func (m *Manager) logged(err error) error {
	if err != nil {
		Logger.Errorf("lock protocol violation: %v", err)
	}
	return err
}
