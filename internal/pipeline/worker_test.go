package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/queue"
)

func TestPoolProcessesJobToCompletion(t *testing.T) {
	env := newTestEnv(t)
	q := queue.NewMemoryQueue(16)
	defer q.Close()

	// The orchestrator enqueues continuations onto the same queue the
	// pool drains.
	env.orch.queue = q

	j := env.submit(t, "en", "fr")
	require.NoError(t, q.Enqueue(context.Background(), job.NewIngressMessage(j), 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(q, env.orch, 2, nil)
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		got := env.load(t, j.ID)
		if got.Status.IsTerminal() {
			assert.Equal(t, job.StatusCompleted, got.Status)
			break
		}
		select {
		case <-deadline:
			t.Fatal("job did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPoolStopsOnClosedQueue(t *testing.T) {
	env := newTestEnv(t)
	q := queue.NewMemoryQueue(1)

	pool := NewPool(q, env.orch, 1, nil)
	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop on closed queue")
	}
}
