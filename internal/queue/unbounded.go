// Package queue provides the unbounded FIFO used between socket workers and the session loop.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Unbounded is a FIFO that is safe for concurrent use. Push never blocks, so a
// slow consumer grows memory instead of stalling producers.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	updateSignal chan struct{}
	done         chan struct{}
}

// NewUnbounded returns an empty queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		updateSignal: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Push appends v. Pushing to a closed queue drops v.
func (q *Unbounded[T]) Push(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signalUpdate()
}

// TryPop removes the head without blocking.
func (q *Unbounded[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

// Pop blocks until an item is available, ctx ends, or the queue is closed and empty.
func (q *Unbounded[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.done:
			if v, ok := q.TryPop(); ok {
				return v, nil
			}
			var zero T
			return zero, ErrClosed
		case <-q.updateSignal:
		}
	}
}

// Ready fires after a Push. Signals coalesce, so a consumer must drain with
// TryPop until empty before waiting again.
func (q *Unbounded[T]) Ready() <-chan struct{} {
	return q.updateSignal
}

// Done is closed by Close. Items pushed before Close may still be queued.
func (q *Unbounded[T]) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items and wakes blocked Pop callers. Queued items remain poppable.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Unbounded[T]) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
