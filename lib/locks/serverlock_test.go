package locks

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests in this file use plain (non-greedy) arbitration. Greedy leases
// and recall are covered in greedy_test.go.

func TestUnlockWithoutHoldFails(t *testing.T) {
	f := newFixture(t, false)

	err := f.lock.Unlock("A", 1, f.helper)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotHeld))

	// a queued request is not a hold either
	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	err = f.lock.Unlock("B", 1, f.helper)
	assert.True(t, errors.Is(err, ErrNotHeld))
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite}, f.states())
}

func TestSingleWriteHolder(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))

	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelWrite)
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite}, f.states())

	require.NoError(t, f.lock.Unlock("A", 1, f.helper))
	got = f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "B", 1, LevelWrite)
	assert.Equal(t, []State{StateHolderWrite}, f.states())
}

func TestReadersShareAndWritersQueueInOrder(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelRead, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelRead, f.helper))
	require.NoError(t, f.lock.Lock("C", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("D", 1, LevelRead, f.helper))

	got := f.sink.take()
	require.Len(t, got, 2)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelRead)
	requireResponse(t, got[1], ResponseAward, "B", 1, LevelRead)

	// D queued behind the writer, it must not overtake it
	assert.Equal(t, []State{StateHolderRead, StateHolderRead, StatePendingWrite, StatePendingRead}, f.states())

	require.NoError(t, f.lock.Unlock("A", 1, f.helper))
	assert.Empty(t, f.sink.take())
	require.NoError(t, f.lock.Unlock("B", 1, f.helper))

	got = f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "C", 1, LevelWrite)

	require.NoError(t, f.lock.Unlock("C", 1, f.helper))
	got = f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "D", 1, LevelRead)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelRead, f.helper))

	err := f.lock.Lock("A", 1, LevelWrite, f.helper)
	assert.True(t, errors.Is(err, ErrUpgrade), "got %v", err)

	err = f.lock.TryLock("A", 1, LevelRead, 0, f.helper)
	assert.True(t, errors.Is(err, ErrAlreadyHeld), "got %v", err)

	require.NoError(t, f.lock.Unlock("A", 1, f.helper))

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Wait("A", 1, 0, f.helper))
	err = f.lock.Lock("A", 1, LevelWrite, f.helper)
	assert.True(t, errors.Is(err, ErrAlreadyWaiting), "got %v", err)
}

func TestPendingDuplicateIsIgnored(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))

	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite}, f.states())
}

func TestTryLockWithoutTimeoutIsRejected(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.TryLock("A", 1, LevelWrite, 0, f.helper))
	require.NoError(t, f.lock.TryLock("B", 1, LevelWrite, 0, f.helper))

	got := f.sink.take()
	require.Len(t, got, 2)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelWrite)
	requireResponse(t, got[1], ResponseRejected, "B", 1, LevelWrite)
	assert.Equal(t, []State{StateHolderWrite}, f.states())
	assert.Empty(t, f.timer.tasks)
	assert.Equal(t, uint64(1), f.stats.rejected.Get())
}

func TestTryLockReadBehindQueuedWriterIsRejected(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelRead, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	f.sink.take()

	require.NoError(t, f.lock.TryLock("C", 1, LevelRead, 0, f.helper))
	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseRejected, "C", 1, LevelRead)
}

func TestTryLockTimeout(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.TryLock("B", 1, LevelWrite, 50*time.Millisecond, f.helper))
	f.sink.take()

	task := f.timer.last()
	require.NotNil(t, task)
	assert.Equal(t, 50*time.Millisecond, task.after)
	assert.Equal(t, []State{StateHolderWrite, {TypeTryPending, LevelWrite}}, f.states())

	f.lock.TimerTimeout(task.ev, f.helper)

	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseRejected, "B", 1, LevelWrite)
	assert.Equal(t, []State{StateHolderWrite}, f.states())
}

func TestAwardCancelsTryLockTimer(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.TryLock("B", 1, LevelWrite, time.Second, f.helper))
	task := f.timer.last()

	require.NoError(t, f.lock.Unlock("A", 1, f.helper))
	assert.True(t, task.cancelled)
	f.sink.take()

	// the timer raced the award, its event must be ignored
	f.lock.TimerTimeout(task.ev, f.helper)
	assert.Empty(t, f.sink.take())
	assert.Equal(t, []State{StateHolderWrite}, f.states())
}

func TestWaitAndNotify(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Wait("A", 1, 0, f.helper))
	assert.Equal(t, []State{StateWaiter}, f.states())

	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	assert.Equal(t, []State{StateHolderWrite, StateWaiter}, f.states())

	notified, err := f.lock.Notify("B", 1, NotifyOne, f.helper)
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, ClientID("A"), notified[0].ClientID)
	assert.Equal(t, ThreadID(1), notified[0].ThreadID)
	assert.Equal(t, StateWaiter, notified[0].State)
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite}, f.states())

	f.sink.take()
	require.NoError(t, f.lock.Unlock("B", 1, f.helper))
	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelWrite)
}

func TestNotifyOneTakesEarliestWaiterAndAllTakesTheRest(t *testing.T) {
	f := newFixture(t, false)

	for tid := ThreadID(1); tid <= 3; tid++ {
		require.NoError(t, f.lock.Reestablish(ClientContext{LockID: "L", ClientID: "A", ThreadID: tid, State: StateWaiter}, f.helper))
	}
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))

	notified, err := f.lock.Notify("B", 1, NotifyOne, f.helper)
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, ThreadID(1), notified[0].ThreadID)
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite, StateWaiter, StateWaiter}, f.states())

	notified, err = f.lock.Notify("B", 1, NotifyAll, f.helper)
	require.NoError(t, err)
	require.Len(t, notified, 2)
	assert.Equal(t, ThreadID(2), notified[0].ThreadID)
	assert.Equal(t, ThreadID(3), notified[1].ThreadID)
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite, StatePendingWrite, StatePendingWrite}, f.states())

	// nobody left to notify
	notified, err = f.lock.Notify("B", 1, NotifyAll, f.helper)
	require.NoError(t, err)
	assert.Empty(t, notified)
}

func TestWaitAndNotifyNeedWriteHold(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.lock.Notify("A", 1, NotifyAll, f.helper)
	assert.True(t, errors.Is(err, ErrIllegalMonitorState), "got %v", err)
	err = f.lock.Wait("A", 1, 0, f.helper)
	assert.True(t, errors.Is(err, ErrIllegalMonitorState), "got %v", err)

	require.NoError(t, f.lock.Lock("A", 1, LevelRead, f.helper))
	err = f.lock.Wait("A", 1, 0, f.helper)
	assert.True(t, errors.Is(err, ErrIllegalMonitorState), "got %v", err)
	_, err = f.lock.Notify("A", 1, NotifyOne, f.helper)
	assert.True(t, errors.Is(err, ErrIllegalMonitorState), "got %v", err)

	// the read hold is untouched
	assert.Equal(t, []State{StateHolderRead}, f.states())
}

func TestWaitTimeoutRequeuesWaiter(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Wait("A", 1, 100*time.Millisecond, f.helper))
	task := f.timer.last()
	require.NotNil(t, task)

	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	f.sink.take()

	f.lock.TimerTimeout(task.ev, f.helper)
	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseWaitTimeout, "A", 1, LevelWrite)
	assert.Equal(t, []State{StateHolderWrite, StatePendingWrite}, f.states())

	// firing twice is a stale event
	f.lock.TimerTimeout(task.ev, f.helper)
	assert.Empty(t, f.sink.take())

	require.NoError(t, f.lock.Unlock("B", 1, f.helper))
	got = f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelWrite)
}

func TestWaitTimeoutOnFreeLockAwardsImmediately(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Wait("A", 1, time.Second, f.helper))
	f.sink.take()

	f.lock.TimerTimeout(f.timer.last().ev, f.helper)
	got := f.sink.take()
	require.Len(t, got, 2)
	requireResponse(t, got[0], ResponseWaitTimeout, "A", 1, LevelWrite)
	requireResponse(t, got[1], ResponseAward, "A", 1, LevelWrite)
}

func TestInterrupt(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Wait("A", 1, time.Second, f.helper))
	task := f.timer.last()
	f.sink.take()

	// not waiting: ignored
	f.lock.Interrupt("B", 1, f.helper)
	assert.Empty(t, f.sink.take())

	f.lock.Interrupt("A", 1, f.helper)
	assert.True(t, task.cancelled)
	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "A", 1, LevelWrite)
}

func TestClearStateForNode(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.TryLock("A", 2, LevelWrite, time.Second, f.helper))
	task := f.timer.last()
	f.sink.take()

	assert.False(t, f.lock.ClearStateForNode("A", f.helper))
	assert.True(t, task.cancelled)
	got := f.sink.take()
	require.Len(t, got, 1)
	requireResponse(t, got[0], ResponseAward, "B", 1, LevelWrite)

	assert.True(t, f.lock.ClearStateForNode("B", f.helper))
	assert.Equal(t, 0, f.store.Len())
}

func TestReestablish(t *testing.T) {
	f := newFixture(t, false)

	holder := ClientContext{LockID: "L", ClientID: "A", ThreadID: 1, State: StateHolderWrite}
	require.NoError(t, f.lock.Reestablish(holder, f.helper))
	assert.Empty(t, f.sink.take(), "reestablished holds are not announced")

	err := f.lock.Reestablish(holder, f.helper)
	assert.True(t, errors.Is(err, ErrDuplicateContext), "got %v", err)

	err = f.lock.Reestablish(ClientContext{LockID: "L", ClientID: "B", ThreadID: 1, State: StateHolderWrite}, f.helper)
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)

	err = f.lock.Reestablish(ClientContext{LockID: "L", ClientID: "B", ThreadID: 1, State: StatePendingWrite}, f.helper)
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)

	require.NoError(t, f.lock.Reestablish(ClientContext{LockID: "L", ClientID: "C", ThreadID: 1, State: StateWaiter, Timeout: 2 * time.Second}, f.helper))
	require.NotNil(t, f.timer.last())
	assert.Equal(t, 2*time.Second, f.timer.last().after)
	assert.Equal(t, []State{StateHolderWrite, StateWaiter}, f.states())
}

func TestQuery(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelRead, f.helper))
	require.NoError(t, f.lock.Lock("B", 1, LevelRead, f.helper))
	require.NoError(t, f.lock.Lock("C", 1, LevelWrite, f.helper))
	require.NoError(t, f.lock.Reestablish(ClientContext{LockID: "L", ClientID: "D", ThreadID: 4, State: StateWaiter, Timeout: 5 * time.Second}, f.helper))
	f.sink.take()
	before := f.states()

	f.lock.Query("Q", 9, f.helper)
	got := f.sink.take()
	require.Len(t, got, 1)
	res := got[0]
	requireResponse(t, res, ResponseQueryResult, "Q", 9, LevelRead)
	assert.Equal(t, 1, res.PendingCount)
	require.Len(t, res.Contexts, 3)
	assert.Equal(t, ClientID("D"), res.Contexts[2].ClientID)
	assert.Equal(t, 5*time.Second, res.Contexts[2].Timeout)
	assert.Equal(t, before, f.states())
}

func TestEmptyLockIsRemovedFromStore(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.lock.Lock("A", 1, LevelWrite, f.helper))
	assert.Equal(t, 1, f.store.Len())

	require.NoError(t, f.lock.Unlock("A", 1, f.helper))
	assert.Equal(t, 0, f.store.Len())
	assert.True(t, f.lock.removed)

	fresh := f.store.CheckOut("L")
	defer f.store.CheckIn(fresh)
	assert.NotSame(t, f.lock, fresh)
}
