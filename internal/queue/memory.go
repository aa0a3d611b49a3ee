package queue

import (
	"context"
	"sync"
	"time"

	"github.com/mapproject/media-pipeline/internal/job"
)

// Compile-time check that MemoryQueue implements Queue.
var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is a channel-backed Queue for development and testing.
// Delays are implemented with timers, so they do not survive a restart;
// the Redis queue is the durable implementation.
type MemoryQueue struct {
	ch   chan job.Message
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue creates an in-memory queue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 128
	}
	return &MemoryQueue{
		ch:   make(chan job.Message, size),
		done: make(chan struct{}),
	}
}

// Enqueue publishes a message, honoring the delay with a timer.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg job.Message, delay time.Duration) error {
	if delay <= 0 {
		select {
		case <-q.done:
			return ErrClosed
		case q.ch <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	time.AfterFunc(delay, func() {
		select {
		case <-q.done:
		case q.ch <- msg:
		}
	})
	return nil
}

// Dequeue blocks until a message arrives, the queue closes, or ctx is
// done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (job.Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		return job.Message{}, ErrClosed
	case <-ctx.Done():
		return job.Message{}, ctx.Err()
	}
}

// Close marks the queue closed and wakes blocked consumers. Pending
// delayed messages are dropped.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
