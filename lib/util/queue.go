// Package util holds small concurrency helpers shared by the lock manager,
// the eviction stage and the RPC server.
//
// Queue is an unbounded multi-producer single-consumer queue. Producers
// append with CAS on a linked list and never wait on each other; one internal goroutine
// forwards the items to a channel so the consumer can use it in a select.
// Items pushed by a single producer are delivered in push order. Across
// producers the order is the order in which their CAS succeeded.
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type qnode[T any] struct {
	value T
	next  atomic.Pointer[qnode[T]]
}

// Queue is an unbounded MPSC queue
type Queue[T any] struct {
	head   atomic.Pointer[qnode[T]] // sentinel, owned by the pump goroutine
	tail   atomic.Pointer[qnode[T]]
	out    chan T
	done   chan struct{}
	closed atomic.Bool
	size   atomic.Int64

	// producers hold gate shared while linking, Close takes it exclusively
	// so no accepted item is linked after the pump may have exited
	gate sync.RWMutex

	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a queue and starts its pump goroutine
func NewQueue[T any]() *Queue[T] {
	sentinel := &qnode[T]{}
	q := &Queue[T]{
		out:  make(chan T),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.pump()
	return q
}

// Push appends an item. It returns false once the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	q.gate.RLock()
	defer q.gate.RUnlock()
	if q.closed.Load() {
		return false
	}

	n := &qnode[T]{value: value}
	var spins uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// a failed swing is fine, the next producer advances the tail
				q.tail.CompareAndSwap(tail, n)
				q.size.Add(1)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// another producer linked a node but has not moved the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		// exponential backoff under contention
		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pump moves items from the list to the out channel until the queue is
// closed and drained
func (q *Queue[T]) pump() {
	defer close(q.done)
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)
			q.out <- value

			var zero T
			next.value = zero
			q.size.Add(-1)
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil {
			if q.closed.Load() {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the consumer reads from. It is closed after
// Close once every pushed item was received.
func (q *Queue[T]) Recv() <-chan T {
	return q.out
}

// Close stops accepting new items. Items already queued are still delivered.
func (q *Queue[T]) Close() {
	q.gate.Lock()
	q.closed.Store(true)
	q.gate.Unlock()

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Done is closed after the pump goroutine has exited
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// IsClosed returns true if the queue is closed.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items not yet handed to the consumer
func (q *Queue[T]) Len() int {
	return int(q.size.Load())
}
