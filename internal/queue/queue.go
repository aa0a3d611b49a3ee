// Package queue provides the job queue port and its in-memory and Redis
// implementations. The queue is point-to-point: each message is delivered
// to exactly one worker, and delivery is at-least-once.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/mapproject/media-pipeline/internal/job"
)

// ErrClosed is returned when operating on a closed queue.
var ErrClosed = errors.New("queue: closed")

// Queue is the transport between the gateway and the pipeline workers.
type Queue interface {
	// Enqueue publishes a message. A non-zero delay withholds the message
	// from consumers until the delay elapses; this is how stage retries
	// implement backoff.
	Enqueue(ctx context.Context, msg job.Message, delay time.Duration) error

	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (job.Message, error)

	// Close releases the queue's resources. Blocked Dequeue calls
	// return ErrClosed.
	Close() error
}

// Compile-time check that Queue satisfies the job package's Enqueuer port.
var _ job.Enqueuer = (Queue)(nil)
