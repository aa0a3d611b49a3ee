package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mapproject/media-pipeline/internal/job"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	msg := job.NewContinuationMessage("job-1", job.StageCaption)
	if err := q.Enqueue(ctx, msg, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.JobID != "job-1" || got.Stage != job.StageCaption {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestMemoryQueue_Delay(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	start := time.Now()
	if err := q.Enqueue(ctx, job.NewContinuationMessage("job-1", job.StageTranslate), 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The message must not be visible before the delay elapses.
	early, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(early); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded before delay, got %v", err)
	}

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("message became visible after %v, before the delay", elapsed)
	}
}

func TestMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(1)
	q.Close()
	err := q.Enqueue(context.Background(), job.Message{}, 0)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
