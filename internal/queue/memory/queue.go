// Package memory provides the in-process FIFO queues shared by workers and the
// result writer.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned by Pop when nothing arrived within the timeout.
var ErrTimeout = errors.New("queue pop timed out")

// Message is one queue entry. Stop marks a sentinel telling exactly one
// consumer to exit.
type Message[T any] struct {
	Value T
	Stop  bool
}

// Queue is an unbounded FIFO safe for concurrent producers and consumers.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []Message[T]
	notify chan struct{}
}

// New constructs an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Put appends a value.
func (q *Queue[T]) Put(v T) {
	q.push(Message[T]{Value: v})
}

// PutStop appends a sentinel.
func (q *Queue[T]) PutStop() {
	q.push(Message[T]{Stop: true})
}

func (q *Queue[T]) push(m Message[T]) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len reports the number of queued entries, sentinels included.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) tryPop() (Message[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Message[T]{}, false
	}
	m := q.items[0]
	q.items[0] = Message[T]{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// wake the next waiter
		q.signal()
	}
	return m, true
}

// Pop removes the oldest entry, waiting up to timeout for one to arrive. It
// returns ErrTimeout when the wait expires and a wrapped context error when
// ctx ends first.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (Message[T], error) {
	if m, ok := q.tryPop(); ok {
		return m, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Message[T]{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-timer.C:
			if m, ok := q.tryPop(); ok {
				return m, nil
			}
			return Message[T]{}, ErrTimeout
		case <-q.notify:
			if m, ok := q.tryPop(); ok {
				return m, nil
			}
		}
	}
}
