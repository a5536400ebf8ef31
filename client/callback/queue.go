package callback

import "sync"

// Handler consumes one delivered value.
type Handler[T any] func(T)

// Entry is a queued value and the handler it should be delivered to.
// A nil Handler falls back to the dispatcher default.
type Entry[T any] struct {
	Value   T
	Handler Handler[T]
}

// Queue is an unbounded FIFO of entries written by many goroutines and
// drained by one.
type Queue[T any] struct {
	mu      sync.Mutex
	entries []Entry[T]
	ready   chan struct{}
}

// NewQueue returns an empty Queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends v. It is safe to call from any goroutine.
func (q *Queue[T]) Push(v T, h Handler[T]) {
	q.mu.Lock()
	q.entries = append(q.entries, Entry[T]{Value: v, Handler: h})
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready returns a channel that receives after a Push. It is a hint only:
// one receive may stand for several pushes, and the queue may already be
// empty again by the time it is read.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

// drain removes and returns every queued entry. A Push racing with drain
// lands either in the returned batch or in the next one.
func (q *Queue[T]) drain() []Entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.entries
	q.entries = nil

	return entries
}
