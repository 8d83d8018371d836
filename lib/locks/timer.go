package locks

import (
	"sync/atomic"
	"time"
)

// TimeoutEvent is posted when a TRY_PENDING or WAITER timeout elapses. It is
// applied through the same checkout path as client requests.
type TimeoutEvent struct {
	LockID   LockID
	ClientID ClientID
	ThreadID ThreadID
	TaskID   uint64
}

// Timer is a TimeoutScheduler based on time.AfterFunc. Fired timers hand
// their event to the deliver function, they never touch a lock themselves.
type Timer struct {
	nextID  atomic.Uint64
	deliver func(TimeoutEvent)
}

// NewTimer creates a Timer that passes fired events to deliver
func NewTimer(deliver func(TimeoutEvent)) *Timer {
	return &Timer{deliver: deliver}
}

// Schedule implements TimeoutScheduler
func (t *Timer) Schedule(lockID LockID, clientID ClientID, threadID ThreadID, after time.Duration) TimerTask {
	task := &timerTask{id: t.nextID.Add(1)}
	ev := TimeoutEvent{
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
		TaskID:   task.id,
	}
	task.timer = time.AfterFunc(after, func() { t.deliver(ev) })
	return task
}

type timerTask struct {
	id    uint64
	timer *time.Timer
}

func (task *timerTask) ID() uint64 { return task.id }

func (task *timerTask) Cancel() bool { return task.timer.Stop() }
