package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultQueueCapacity bounds a queue when configuration leaves it unset.
const DefaultQueueCapacity = 100

// ErrQueueClosed is returned by Put after Close, and by Get once a closed
// queue has been drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded FIFO handoff between goroutines of one orchestrator.
// Put blocks while the queue is full.
type Queue[T any] struct {
	items chan T
	done  chan struct{}
	once  sync.Once
}

// NewQueue returns a queue holding at most capacity items.
func NewQueue[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrConfig, capacity)
	}
	return &Queue[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}, nil
}

// Put appends v, waiting for room.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- v:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get removes the oldest item, waiting for one to arrive. Items enqueued
// before Close are still delivered.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.items:
		return v, nil
	default:
	}
	select {
	case v := <-q.items:
		return v, nil
	case <-q.done:
		select {
		case v := <-q.items:
			return v, nil
		default:
			return zero, ErrQueueClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops further Puts. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

// Len is the number of buffered items.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap is the configured capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }
