package job

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository with the
// same compare-and-set contract as the durable store. Suitable for
// development and testing; swap for the GORM store in production.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Create persists a new job. Clones to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return ErrJobExists
	}
	stored := j.Clone()
	stored.Version = 1
	r.jobs[j.ID] = stored
	j.Version = 1
	return nil
}

// FindByID retrieves a job by its ID. Returns a clone to prevent external
// mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return stored.Clone(), nil
}

// Update applies the compare-and-set write: the stored version must match
// the caller's snapshot version.
func (r *MemoryRepository) Update(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[j.ID]
	if !ok {
		return ErrJobNotFound
	}
	if stored.Version != j.Version {
		return ErrVersionConflict
	}
	next := j.Clone()
	next.Version = j.Version + 1
	r.jobs[j.ID] = next
	j.Version = next.Version
	return nil
}
