package locks

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("locks")

// --------------------------------------------------------------------------
// Lock contexts
// --------------------------------------------------------------------------

// lockContext is the relationship of one (client, thread) pair to a lock.
// timeout and timer are only set for TRY_PENDING and WAITER contexts.
type lockContext struct {
	client  ClientID
	thread  ThreadID
	state   State
	timeout time.Duration
	timer   TimerTask
}

func (c *lockContext) is(cid ClientID, tid ThreadID) bool {
	return c.client == cid && c.thread == tid
}

func (c *lockContext) exchange(id LockID) ClientContext {
	return ClientContext{
		LockID:   id,
		ClientID: c.client,
		ThreadID: c.thread,
		State:    c.state,
		Timeout:  c.timeout,
	}
}

// --------------------------------------------------------------------------
// ServerLock
// --------------------------------------------------------------------------

// ServerLock is the arbitration state of a single lock id. It keeps one
// ordered slice of contexts:
//
//	greedy holders | holders | pending | try-pending | waiters
//
// A ServerLock is not safe for concurrent use. All methods must be called
// while the lock is checked out from its Store (see Store.CheckOut).
type ServerLock struct {
	id       LockID
	greedy   bool
	contexts []*lockContext
	recalled bool

	// checkout state, owned by Store
	mu      sync.Mutex
	removed bool
}

// NewServerLock creates an empty lock. With greedy set, WRITE awards are
// handed out as leases to the whole client and revoked by recall.
func NewServerLock(id LockID, greedy bool) *ServerLock {
	return &ServerLock{
		id:     id,
		greedy: greedy,
	}
}

// ID returns the lock id
func (l *ServerLock) ID() LockID { return l.id }

// IsEmpty reports whether the lock has no contexts left
func (l *ServerLock) IsEmpty() bool { return len(l.contexts) == 0 }

// IsRecalled reports whether a recall is in flight
func (l *ServerLock) IsRecalled() bool { return l.recalled }

// Contexts returns a snapshot of all contexts in order
func (l *ServerLock) Contexts() []ClientContext {
	out := make([]ClientContext, len(l.contexts))
	for i, c := range l.contexts {
		out[i] = c.exchange(l.id)
	}
	return out
}

func (l *ServerLock) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ServerLock{%s greedy=%t recalled=%t", l.id, l.greedy, l.recalled))
	for _, c := range l.contexts {
		sb.WriteString(fmt.Sprintf(" %s/%s:%s", c.client, c.thread, c.state))
	}
	sb.WriteString("}")
	return sb.String()
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Lock queues a request at the given level and awards it if possible.
func (l *ServerLock) Lock(cid ClientID, tid ThreadID, level Level, h *Helper) error {
	pending, err := l.validate(cid, tid, level)
	if err != nil {
		return err
	}
	h.Stats.RecordRequested(l.id, cid, tid, pending)
	l.requestLock(cid, tid, level, TypePending, 0, h)
	return nil
}

// TryLock is like Lock, but a request without timeout that cannot be awarded
// right away is rejected instead of queued. With a timeout the request waits
// at most that long and is rejected when the timer fires.
func (l *ServerLock) TryLock(cid ClientID, tid ThreadID, level Level, timeout time.Duration, h *Helper) error {
	pending, err := l.validate(cid, tid, level)
	if err != nil {
		return err
	}
	h.Stats.RecordRequested(l.id, cid, tid, pending)

	if timeout <= 0 && !l.canAwardImmediately(level) {
		l.refuseTryRequestWithNoTimeout(cid, tid, level, h)
		return nil
	}
	l.requestLock(cid, tid, level, TypeTryPending, timeout, h)
	return nil
}

// Query emits a QUERY_RESULT with all holders and waiters and the number of
// queued requests. The lock is not modified.
func (l *ServerLock) Query(cid ClientID, tid ThreadID, h *Helper) {
	var contexts []ClientContext
	pending := 0
	for _, c := range l.contexts {
		switch c.state.Type {
		case TypeHolder, TypeGreedyHolder, TypeWaiter:
			contexts = append(contexts, c.exchange(l.id))
		case TypePending, TypeTryPending:
			pending++
		}
	}
	h.Sink.Add(Response{
		Type:         ResponseQueryResult,
		LockID:       l.id,
		ClientID:     cid,
		ThreadID:     tid,
		Level:        l.holderLevel(),
		Contexts:     contexts,
		PendingCount: pending,
	})
}

// Interrupt moves a waiting thread back to pending. Interrupting a thread
// that does not wait is logged and ignored.
func (l *ServerLock) Interrupt(cid ClientID, tid ThreadID, h *Helper) {
	waiter := l.get(cid, tid)
	if waiter == nil || waiter.state.Type != TypeWaiter {
		Logger.Warningf("cannot interrupt %s/%s on %s: not waiting", cid, tid, l.id)
		return
	}
	l.removeContext(waiter)
	l.moveWaiterToPending(waiter, h)
	l.processPending(h)
}

// Notify moves the earliest waiter (NotifyOne) or all waiters (NotifyAll)
// to pending and returns them. The caller must hold the lock at WRITE
// level; a greedy WRITE lease of the caller's client counts as well.
func (l *ServerLock) Notify(cid ClientID, tid ThreadID, action NotifyAction, h *Helper) ([]ClientContext, error) {
	holder := l.get(cid, tid)
	if holder == nil && l.greedy {
		holder = l.get(cid, VMThreadID)
	}
	if holder == nil {
		return nil, NewError(RetCIllegalMonitorState, l.id, "no holder present for notify by %s/%s", cid, tid)
	}
	if holder.state != StateHolderWrite && holder.state != StateGreedyHolderWrite {
		return nil, NewError(RetCIllegalMonitorState, l.id, "holder %s/%s is %s, notify needs a write hold", cid, tid, holder.state)
	}

	waiters := l.removeWaiters(action)
	notified := make([]ClientContext, 0, len(waiters))
	for _, w := range waiters {
		l.moveWaiterToPending(w, h)
		notified = append(notified, ClientContext{
			LockID:   l.id,
			ClientID: w.client,
			ThreadID: w.thread,
			State:    StateWaiter,
		})
	}
	return notified, nil
}

// Wait releases the caller's WRITE hold and parks it as a waiter. A timeout
// greater than zero arms a timer; when it fires the waiter gets WAIT_TIMEOUT
// and competes for the lock again.
func (l *ServerLock) Wait(cid ClientID, tid ThreadID, timeout time.Duration, h *Helper) error {
	holder := l.get(cid, tid)
	if holder == nil {
		return NewError(RetCIllegalMonitorState, l.id, "no holder present for wait by %s/%s", cid, tid)
	}
	if holder.state != StateHolderWrite && holder.state != StateGreedyHolderWrite {
		return NewError(RetCIllegalMonitorState, l.id, "holder %s/%s is %s, wait needs a write hold", cid, tid, holder.state)
	}

	l.removeContext(holder)
	h.Stats.RecordReleased(l.id, cid, tid)
	l.addWaiter(l.newWaiter(cid, tid, timeout, h))
	l.processPending(h)
	return nil
}

// Unlock releases the caller's hold.
func (l *ServerLock) Unlock(cid ClientID, tid ThreadID, h *Helper) error {
	holder := l.get(cid, tid)
	if holder == nil || !holder.state.IsHolder() {
		return NewError(RetCNotHeld, l.id, "unlock by %s/%s but the lock is not held by it", cid, tid)
	}

	l.removeContext(holder)
	h.Stats.RecordReleased(l.id, cid, tid)

	if l.clearIfEmpty(h) {
		return nil
	}
	l.processPending(h)
	return nil
}

// Reestablish replays one context reported by a reconnecting client. Holds
// are awarded without a response, waiters are re-armed.
func (l *ServerLock) Reestablish(cc ClientContext, h *Helper) error {
	if l.get(cc.ClientID, cc.ThreadID) != nil {
		return NewError(RetCDuplicateContext, l.id, "%s/%s is already known", cc.ClientID, cc.ThreadID)
	}

	switch cc.State.Type {
	case TypeHolder, TypeGreedyHolder:
		if !l.canAwardRequest(cc.State.Level) {
			return NewError(RetCInvalidState, l.id, "cannot reestablish %s, the lock is already held", cc)
		}
		req := &lockContext{client: cc.ClientID, thread: cc.ThreadID, state: State{TypePending, cc.State.Level}}
		if l.greedy && cc.ThreadID == VMThreadID {
			l.awardLockGreedily(req, false, h)
		} else {
			l.awardLock(req, holderState(cc.State.Level), false, h)
		}
	case TypeWaiter:
		l.addWaiter(l.newWaiter(cc.ClientID, cc.ThreadID, cc.Timeout, h))
	default:
		return NewError(RetCInvalidState, l.id, "cannot reestablish context in state %s", cc.State)
	}
	return nil
}

// RecallCommit handles a client's answer to a recall. The client's greedy
// lease is replaced by the per-thread contexts it reports.
//
// The commit is validated completely before the lock is changed.
func (l *ServerLock) RecallCommit(cid ClientID, contexts []ClientContext, h *Helper) error {
	if !l.greedy {
		return NewError(RetCInvalidState, l.id, "recall commit on a non-greedy lock")
	}
	lease := l.get(cid, VMThreadID)
	if lease == nil || lease.state.Type != TypeGreedyHolder {
		return NewError(RetCNoGreedyHolder, l.id, "no greedy holder exists for %s", cid)
	}
	seen := make(map[ThreadID]struct{}, len(contexts))
	for _, cc := range contexts {
		if cc.ThreadID == VMThreadID {
			return NewError(RetCInvalidState, l.id, "recall commit reports the lease itself")
		}
		if _, dup := seen[cc.ThreadID]; dup {
			return NewError(RetCDuplicateContext, l.id, "thread %s reported twice in recall commit", cc.ThreadID)
		}
		seen[cc.ThreadID] = struct{}{}

		switch cc.State.Type {
		case TypeHolder, TypeWaiter:
			if l.get(cid, cc.ThreadID) != nil {
				return NewError(RetCDuplicateContext, l.id, "%s/%s is already known", cid, cc.ThreadID)
			}
		case TypePending, TypeTryPending:
		default:
			return NewError(RetCInvalidState, l.id, "state %s not allowed in recall commit", cc.State)
		}
	}

	l.removeContext(lease)
	h.Stats.RecordReleased(l.id, cid, VMThreadID)

	for _, cc := range contexts {
		level := cc.State.Level
		switch cc.State.Type {
		case TypeHolder:
			req := &lockContext{client: cid, thread: cc.ThreadID, state: State{TypePending, level}}
			l.awardLock(req, holderState(level), false, h)
		case TypePending:
			l.queue(cid, cc.ThreadID, level, TypePending, 0, h)
		case TypeTryPending:
			if cc.Timeout <= 0 {
				l.cannotAward(cid, cc.ThreadID, level, h)
			} else {
				l.queue(cid, cc.ThreadID, level, TypeTryPending, cc.Timeout, h)
			}
		case TypeWaiter:
			l.addWaiter(l.newWaiter(cid, cc.ThreadID, cc.Timeout, h))
		}
	}

	if l.hasGreedyHolders() && !l.recalled && l.hasPending() {
		l.recall(LevelWrite, h)
	}

	if l.clearIfEmpty(h) {
		return nil
	}
	l.processPending(h)
	return nil
}

// TimerTimeout handles a fired timeout. Events whose context has moved on
// (awarded, removed, or re-armed with a new timer) are ignored.
func (l *ServerLock) TimerTimeout(ev TimeoutEvent, h *Helper) {
	var ctx *lockContext
	for _, c := range l.contexts {
		if c.is(ev.ClientID, ev.ThreadID) && c.timer != nil && c.timer.ID() == ev.TaskID {
			ctx = c
			break
		}
	}
	if ctx == nil || (ctx.state.Type != TypeTryPending && ctx.state.Type != TypeWaiter) {
		Logger.Debugf("ignoring stale timeout for %s/%s on %s", ev.ClientID, ev.ThreadID, l.id)
		return
	}

	l.removeContext(ctx)
	ctx.timer = nil

	if ctx.state.Type == TypeWaiter {
		h.Sink.Add(Response{
			Type:     ResponseWaitTimeout,
			LockID:   l.id,
			ClientID: ctx.client,
			ThreadID: ctx.thread,
			Level:    ctx.state.Level,
		})
		if err := l.Lock(ctx.client, ctx.thread, LevelWrite, h); err != nil {
			Logger.Errorf("re-lock after wait timeout failed: %v", err)
		}
		return
	}

	l.cannotAward(ctx.client, ctx.thread, ctx.state.Level, h)
	if l.clearIfEmpty(h) {
		return
	}
	l.processPending(h)
}

// ClearStateForNode drops every context of a disconnected client, cancels
// its timers and reprocesses the queue. It returns true if the lock is
// empty afterwards.
func (l *ServerLock) ClearStateForNode(cid ClientID, h *Helper) bool {
	kept := make([]*lockContext, 0, len(l.contexts))
	for _, c := range l.contexts {
		if c.client == cid {
			l.cancelTimer(c)
			continue
		}
		kept = append(kept, c)
	}
	l.contexts = kept
	if !l.hasGreedyHolders() {
		l.recalled = false
	}

	l.processPending(h)
	return l.clearIfEmpty(h)
}

// --------------------------------------------------------------------------
// Request processing
// --------------------------------------------------------------------------

func (l *ServerLock) requestLock(cid ClientID, tid ThreadID, level Level, typ ContextType, timeout time.Duration, h *Helper) {
	if l.greedy {
		holder := l.greedyHolder(cid)
		if canAwardGreedilyOnClient(level, holder) {
			// the client grants this locally under its lease
			return
		}
		if l.recalled {
			// clients holding a lease report their queue in the recall commit
			if holder == nil {
				if timeout > 0 || typ != TypeTryPending {
					l.queue(cid, tid, level, typ, timeout, h)
				} else {
					l.cannotAward(cid, tid, level, h)
				}
			}
			return
		}
	}
	l.queue(cid, tid, level, typ, timeout, h)
	l.processPending(h)
}

func (l *ServerLock) queue(cid ClientID, tid ThreadID, level Level, typ ContextType, timeout time.Duration, h *Helper) {
	if l.greedy && !l.canAwardRequest(level) && l.hasGreedyHolders() {
		l.recall(level, h)
	}

	ctx := &lockContext{client: cid, thread: tid, state: State{typ, level}}
	switch typ {
	case TypeTryPending:
		ctx.timeout = timeout
		if timeout > 0 {
			ctx.timer = h.Timer.Schedule(l.id, cid, tid, timeout)
		}
		l.addTryPending(ctx)
	case TypePending:
		l.addPending(ctx)
	default:
		panic(fmt.Sprintf("only pending contexts can be queued, got %s", typ))
	}
}

func (l *ServerLock) processPending(h *Helper) {
	if !l.greedy {
		for i := l.nextAwardable(); i >= 0; i = l.nextAwardable() {
			req := l.contexts[i]
			l.contexts = slices.Delete(l.contexts, i, i+1)
			l.awardLock(req, holderState(req.state.Level), true, h)
		}
		return
	}

	if l.recalled {
		return
	}
	i := l.nextAwardable()
	if i < 0 {
		return
	}

	req := l.contexts[i]
	switch req.state.Level {
	case LevelRead:
		l.awardAllReadsGreedily(h)
	case LevelWrite:
		l.contexts = slices.Delete(l.contexts, i, i+1)
		if l.hasWaiters() {
			// a lease would let the client's own notify starve remote waiters
			l.awardLock(req, StateHolderWrite, true, h)
			return
		}
		l.awardLockGreedily(req, true, h)
		if l.hasPendingFromOtherClients(req.client) {
			l.recall(LevelWrite, h)
		}
	}
}

// awardAllReadsGreedily turns every queued READ into one greedy READ lease
// per client and recalls if a WRITE is queued behind them.
func (l *ServerLock) awardAllReadsGreedily(h *Helper) {
	var reads []*lockContext
	pendingWrite := false
	kept := make([]*lockContext, 0, len(l.contexts))
	for _, c := range l.contexts {
		if c.state.IsPending() {
			if c.state.Level == LevelRead {
				reads = append(reads, c)
				continue
			}
			pendingWrite = true
		}
		kept = append(kept, c)
	}
	l.contexts = kept

	leased := make(map[ClientID]struct{}, len(reads))
	for _, c := range reads {
		if _, ok := leased[c.client]; ok {
			l.cancelTimer(c)
			continue
		}
		l.awardLockGreedily(c, true, h)
		leased[c.client] = struct{}{}
	}

	if pendingWrite {
		l.recall(LevelWrite, h)
	}
}

func (l *ServerLock) awardLockGreedily(req *lockContext, respond bool, h *Helper) {
	l.removeNonGreedyContextsOf(req.client)
	l.awardLock(req, State{TypeGreedyHolder, req.state.Level}, respond, h)
}

func (l *ServerLock) awardLock(req *lockContext, state State, respond bool, h *Helper) {
	tid := req.thread

	l.cancelTimer(req)
	req.state = state
	req.timeout = 0
	if state.Type == TypeGreedyHolder {
		req.thread = VMThreadID
	}
	l.addHolder(req)

	h.Stats.RecordAwarded(l.id, req.client, tid, state.Type == TypeGreedyHolder)

	if respond {
		h.Sink.Add(Response{
			Type:     ResponseAward,
			LockID:   l.id,
			ClientID: req.client,
			ThreadID: req.thread,
			Level:    state.Level,
		})
	}
}

func (l *ServerLock) recall(level Level, h *Helper) {
	if l.recalled {
		return
	}
	for _, c := range l.contexts {
		if c.state.Type != TypeGreedyHolder {
			break
		}
		h.Sink.Add(Response{
			Type:     ResponseRecall,
			LockID:   l.id,
			ClientID: c.client,
			ThreadID: c.thread,
			Level:    level,
		})
		l.recalled = true
	}
	h.Stats.RecordHop(l.id)
}

func (l *ServerLock) refuseTryRequestWithNoTimeout(cid ClientID, tid ThreadID, level Level, h *Helper) {
	if !l.greedy {
		l.cannotAward(cid, tid, level, h)
		return
	}
	holder := l.greedyHolder(cid)
	if l.hasGreedyHolders() && holder == nil {
		l.recall(level, h)
	}
	if !canAwardGreedilyOnClient(level, holder) {
		l.cannotAward(cid, tid, level, h)
	}
}

func (l *ServerLock) cannotAward(cid ClientID, tid ThreadID, level Level, h *Helper) {
	h.Sink.Add(Response{
		Type:     ResponseRejected,
		LockID:   l.id,
		ClientID: cid,
		ThreadID: tid,
		Level:    level,
	})
	h.Stats.RecordRejected(l.id, cid, tid)
}

func (l *ServerLock) moveWaiterToPending(w *lockContext, h *Helper) {
	h.Stats.RecordRequested(l.id, w.client, w.thread, l.pendingCount())
	l.cancelTimer(w)
	l.queue(w.client, w.thread, w.state.Level, TypePending, 0, h)
}

func (l *ServerLock) newWaiter(cid ClientID, tid ThreadID, timeout time.Duration, h *Helper) *lockContext {
	w := &lockContext{client: cid, thread: tid, state: StateWaiter, timeout: timeout}
	if timeout > 0 {
		w.timer = h.Timer.Schedule(l.id, cid, tid, timeout)
	}
	return w
}

// clearIfEmpty removes the lock from its store once nothing references it
func (l *ServerLock) clearIfEmpty(h *Helper) bool {
	if !l.IsEmpty() {
		return false
	}
	if h.Store != nil {
		h.Store.remove(l)
	}
	return true
}

func (l *ServerLock) cancelTimer(c *lockContext) {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

// --------------------------------------------------------------------------
// Validation and queries on the context list
// --------------------------------------------------------------------------

// validate rejects upgrades, re-requests of a held level and requests by a
// waiting thread. It returns the number of queued requests.
func (l *ServerLock) validate(cid ClientID, tid ThreadID, level Level) (int, error) {
	pending := 0
	for _, c := range l.contexts {
		switch c.state.Type {
		case TypeHolder, TypeGreedyHolder:
			if !c.is(cid, tid) {
				continue
			}
			if level == LevelWrite && l.isRead() {
				return 0, NewError(RetCUpgrade, l.id, "lock upgrade is not supported (%s/%s holds %s)", cid, tid, c.state)
			}
			if c.state.Level == level {
				return 0, NewError(RetCAlreadyHeld, l.id, "%s/%s requests an already held lock (%s)", cid, tid, c.state)
			}
		case TypePending, TypeTryPending:
			pending++
		case TypeWaiter:
			if c.is(cid, tid) {
				return 0, NewError(RetCAlreadyWaiting, l.id, "%s/%s is already waiting", cid, tid)
			}
		}
	}
	return pending, nil
}

func canAwardGreedilyOnClient(level Level, holder *lockContext) bool {
	return holder != nil && (holder.state.Level == LevelWrite || level == LevelRead)
}

func (l *ServerLock) canAwardRequest(level Level) bool {
	switch level {
	case LevelRead:
		return !l.hasHolders() || l.isRead()
	case LevelWrite:
		return !l.hasHolders()
	}
	return false
}

// canAwardImmediately is canAwardRequest plus an empty queue, since a
// request queued behind others would not be awarded right away
func (l *ServerLock) canAwardImmediately(level Level) bool {
	return l.canAwardRequest(level) && !l.hasPending()
}

// nextAwardable returns the index of the first queued request if it can be
// awarded, -1 otherwise. Scanning stops at the first request and at the
// waiter segment.
func (l *ServerLock) nextAwardable() int {
	for i, c := range l.contexts {
		switch c.state.Type {
		case TypePending, TypeTryPending:
			if l.canAwardRequest(c.state.Level) {
				return i
			}
			return -1
		case TypeWaiter:
			return -1
		}
	}
	return -1
}

func (l *ServerLock) holderLevel() Level {
	if !l.hasHolders() {
		return LevelNone
	}
	return l.contexts[0].state.Level
}

func (l *ServerLock) isRead() bool { return l.holderLevel() == LevelRead }

func (l *ServerLock) hasHolders() bool {
	return len(l.contexts) > 0 && l.contexts[0].state.IsHolder()
}

func (l *ServerLock) hasGreedyHolders() bool {
	return len(l.contexts) > 0 && l.contexts[0].state.Type == TypeGreedyHolder
}

func (l *ServerLock) hasWaiters() bool {
	return len(l.contexts) > 0 && l.contexts[len(l.contexts)-1].state.Type == TypeWaiter
}

func (l *ServerLock) hasPending() bool {
	return l.pendingCount() > 0
}

func (l *ServerLock) pendingCount() int {
	count := 0
	for _, c := range l.contexts {
		switch c.state.Type {
		case TypePending, TypeTryPending:
			count++
		case TypeWaiter:
			return count
		}
	}
	return count
}

func (l *ServerLock) hasPendingFromOtherClients(cid ClientID) bool {
	for _, c := range l.contexts {
		if c.state.IsPending() && c.client != cid {
			return true
		}
	}
	return false
}

func (l *ServerLock) greedyHolder(cid ClientID) *lockContext {
	for _, c := range l.contexts {
		if c.state.Type != TypeGreedyHolder {
			return nil
		}
		if c.client == cid {
			return c
		}
	}
	return nil
}

func (l *ServerLock) get(cid ClientID, tid ThreadID) *lockContext {
	for _, c := range l.contexts {
		if c.is(cid, tid) {
			return c
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Context list mutation
// --------------------------------------------------------------------------

// removeContext removes exactly this context. Once the last greedy holder
// is gone the lock is no longer recalled.
func (l *ServerLock) removeContext(ctx *lockContext) {
	if i := slices.Index(l.contexts, ctx); i >= 0 {
		l.contexts = slices.Delete(l.contexts, i, i+1)
	}
	if !l.hasGreedyHolders() {
		l.recalled = false
	}
}

// removeWaiters removes the earliest waiter (NotifyOne) or all of them
func (l *ServerLock) removeWaiters(action NotifyAction) []*lockContext {
	var waiters []*lockContext
	kept := make([]*lockContext, 0, len(l.contexts))
	for _, c := range l.contexts {
		if c.state.Type == TypeWaiter && (action == NotifyAll || len(waiters) == 0) {
			waiters = append(waiters, c)
			continue
		}
		kept = append(kept, c)
	}
	l.contexts = kept
	return waiters
}

// removeNonGreedyContextsOf drops the client's plain holders and queued
// requests before it receives a lease. Waiters are kept.
func (l *ServerLock) removeNonGreedyContextsOf(cid ClientID) {
	kept := make([]*lockContext, 0, len(l.contexts))
	for i, c := range l.contexts {
		if c.state.Type == TypeWaiter {
			kept = append(kept, l.contexts[i:]...)
			break
		}
		if c.client == cid && c.state.Type != TypeGreedyHolder {
			l.cancelTimer(c)
			continue
		}
		kept = append(kept, c)
	}
	l.contexts = kept
}

func (l *ServerLock) addHolder(ctx *lockContext) {
	if l.get(ctx.client, ctx.thread) != nil {
		panic(fmt.Sprintf("duplicate holder %s/%s on %s", ctx.client, ctx.thread, l.id))
	}
	switch ctx.state.Type {
	case TypeGreedyHolder:
		l.contexts = slices.Insert(l.contexts, 0, ctx)
	case TypeHolder:
		i := 0
		for i < len(l.contexts) && l.contexts[i].state.Type == TypeGreedyHolder {
			i++
		}
		l.contexts = slices.Insert(l.contexts, i, ctx)
	default:
		panic(fmt.Sprintf("only holders can be added as holders, got %s", ctx.state))
	}
}

// addPending ignores a request the same thread already has queued
func (l *ServerLock) addPending(ctx *lockContext) {
	if l.get(ctx.client, ctx.thread) != nil {
		Logger.Debugf("ignoring existing request %s/%s on %s", ctx.client, ctx.thread, l.id)
		return
	}
	l.insertBefore(ctx, func(t ContextType) bool { return t == TypeTryPending || t == TypeWaiter })
}

// addTryPending appends to the try-pending run. Duplicates are tolerated,
// a client may race its own try requests.
func (l *ServerLock) addTryPending(ctx *lockContext) {
	l.insertBefore(ctx, func(t ContextType) bool { return t == TypeWaiter })
}

func (l *ServerLock) addWaiter(ctx *lockContext) {
	if l.get(ctx.client, ctx.thread) != nil {
		panic(fmt.Sprintf("duplicate waiter %s/%s on %s", ctx.client, ctx.thread, l.id))
	}
	l.contexts = append(l.contexts, ctx)
}

func (l *ServerLock) insertBefore(ctx *lockContext, stop func(ContextType) bool) {
	for i, c := range l.contexts {
		if stop(c.state.Type) {
			l.contexts = slices.Insert(l.contexts, i, ctx)
			return
		}
	}
	l.contexts = append(l.contexts, ctx)
}

func holderState(level Level) State {
	return State{TypeHolder, level}
}
