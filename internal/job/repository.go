package job

import (
	"context"
	"errors"
	"time"
)

// Static errors for repository operations.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job: not found")
	// ErrJobExists is returned when creating a job whose ID is taken.
	ErrJobExists = errors.New("job: already exists")
	// ErrVersionConflict is returned when a compare-and-set update loses
	// against a concurrent writer. Callers reload and retry or no-op.
	ErrVersionConflict = errors.New("job: version conflict")
)

// Repository defines the port for durable job persistence. It is the single
// source of truth for job state; Update must provide compare-and-set
// semantics so concurrent workers cannot lose updates, because workers may
// be spread across processes and machines.
type Repository interface {
	// Create persists a new job. Returns ErrJobExists if the ID is taken.
	Create(ctx context.Context, j *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// Update persists the job only if the stored Version still matches
	// j.Version; on success the stored and returned Version is bumped.
	// Returns ErrVersionConflict when a concurrent writer got there first.
	Update(ctx context.Context, j *Job) error
}

// Enqueuer is the narrow dependency the service and orchestrator have on
// the job queue. The queue package's implementations satisfy it.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message, delay time.Duration) error
}
