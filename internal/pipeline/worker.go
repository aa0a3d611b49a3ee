package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/queue"
)

// Pool runs a fixed set of workers, each draining the queue one message
// at a time. The record store's compare-and-set update is the only
// synchronization between workers, so the pool can span processes.
type Pool struct {
	queue   queue.Queue
	orch    *Orchestrator
	workers int
	// requeueDelay is the pause before a message whose handling hit an
	// infrastructure failure goes back on the queue.
	requeueDelay time.Duration
	logger       *slog.Logger
}

// NewPool creates a worker pool of the given size.
func NewPool(q queue.Queue, orch *Orchestrator, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:        q,
		orch:         orch,
		workers:      workers,
		requeueDelay: 5 * time.Second,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled or the queue is closed, then waits
// for in-flight messages to finish.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	logger := p.logger.With(slog.Int("worker", id))
	for {
		msg, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrClosed) {
				return
			}
			logger.Error("dequeue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.requeueDelay):
			}
			continue
		}

		if err := p.orch.Handle(ctx, msg); err != nil {
			// Infrastructure failure. Put the message back so the
			// job is not stranded; delivery stays at-least-once.
			logger.Error("message handling failed, re-enqueueing",
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()),
			)
			p.requeue(ctx, msg, logger)
		}
	}
}

func (p *Pool) requeue(ctx context.Context, msg job.Message, logger *slog.Logger) {
	if err := p.queue.Enqueue(ctx, msg, p.requeueDelay); err != nil {
		logger.Error("re-enqueue failed, message dropped",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
	}
}
