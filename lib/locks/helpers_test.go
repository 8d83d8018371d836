package locks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Recording sink
// --------------------------------------------------------------------------

type recordingSink struct {
	mu        sync.Mutex
	responses []Response
}

func (s *recordingSink) Add(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
}

// take returns everything recorded so far and resets the sink
func (s *recordingSink) take() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.responses
	s.responses = nil
	return out
}

func (s *recordingSink) ofType(t ResponseType) []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Response
	for _, r := range s.responses {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Manual scheduler
// --------------------------------------------------------------------------

type manualTask struct {
	id        uint64
	ev        TimeoutEvent
	after     time.Duration
	cancelled bool
}

func (t *manualTask) ID() uint64 { return t.id }

func (t *manualTask) Cancel() bool {
	wasActive := !t.cancelled
	t.cancelled = true
	return wasActive
}

type manualScheduler struct {
	next  uint64
	tasks []*manualTask
}

func (s *manualScheduler) Schedule(lockID LockID, clientID ClientID, threadID ThreadID, after time.Duration) TimerTask {
	s.next++
	task := &manualTask{
		id:    s.next,
		after: after,
		ev:    TimeoutEvent{LockID: lockID, ClientID: clientID, ThreadID: threadID, TaskID: s.next},
	}
	s.tasks = append(s.tasks, task)
	return task
}

func (s *manualScheduler) last() *manualTask {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// --------------------------------------------------------------------------
// Fixture
// --------------------------------------------------------------------------

type fixture struct {
	store  *Store
	lock   *ServerLock
	sink   *recordingSink
	timer  *manualScheduler
	stats  *MetricsStats
	helper *Helper
}

// newFixture checks out lock "L" and keeps it checked out for the test
func newFixture(t *testing.T, greedy bool) *fixture {
	t.Helper()
	f := &fixture{
		store: NewStore(greedy),
		sink:  &recordingSink{},
		timer: &manualScheduler{},
		stats: NewMetricsStats(),
	}
	f.helper = &Helper{Sink: f.sink, Timer: f.timer, Stats: f.stats, Store: f.store}
	f.lock = f.store.CheckOut("L")
	return f
}

func (f *fixture) states() []State {
	out := make([]State, 0, len(f.lock.contexts))
	for _, c := range f.lock.contexts {
		out = append(out, c.state)
	}
	return out
}

func requireResponse(t *testing.T, got Response, typ ResponseType, cid ClientID, tid ThreadID, level Level) {
	t.Helper()
	require.Equal(t, typ, got.Type, "response %s", got)
	require.Equal(t, cid, got.ClientID, "response %s", got)
	require.Equal(t, tid, got.ThreadID, "response %s", got)
	require.Equal(t, level, got.Level, "response %s", got)
}
