package eviction

import (
	"github.com/ValentinKolb/dSO/lib/util"
)

// Stage applies eviction contexts asynchronously on a single goroutine. It
// implements Sink.
type Stage struct {
	queue *util.Queue[Context]
	apply func(Context) int
	done  chan struct{}
}

// NewStage starts a stage that hands every context to apply, usually
// Manager.Evict
func NewStage(apply func(Context) int) *Stage {
	s := &Stage{
		queue: util.NewQueue[Context](),
		apply: apply,
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Add implements Sink. Contexts added after Close are dropped.
func (s *Stage) Add(ctx Context) {
	if !s.queue.Push(ctx) {
		Logger.Warningf("eviction stage closed, dropping %s", ctx)
	}
}

// Pending returns the number of contexts not yet picked up
func (s *Stage) Pending() int {
	return s.queue.Len()
}

// Close stops accepting contexts and waits until the queued ones are applied
func (s *Stage) Close() {
	s.queue.Close()
	<-s.done
}

func (s *Stage) run() {
	defer close(s.done)
	for ctx := range s.queue.Recv() {
		s.apply(ctx)
	}
}
