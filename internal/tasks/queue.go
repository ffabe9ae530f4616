package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrQueueClosed = errors.New("task queue closed")
	ErrQueueFull   = errors.New("task queue full")
)

type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
	Close() error
}

// MemoryQueue is an in-process queue for development and tests.
type MemoryQueue struct {
	tasks  chan Task
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 100
	}
	return &MemoryQueue{
		tasks: make(chan Task, buffer),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(q.tasks))
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case t := <-q.tasks:
		return t, nil
	case <-q.done:
		return Task{}, ErrQueueClosed
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Len reports the number of waiting tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

// Drain removes and returns every waiting task.
func (q *MemoryQueue) Drain() []Task {
	var out []Task
	for {
		select {
		case t := <-q.tasks:
			out = append(out, t)
		default:
			return out
		}
	}
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
	return nil
}

func (q *MemoryQueue) PingContext(context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}
