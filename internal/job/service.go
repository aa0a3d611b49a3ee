package job

import (
	"context"
	"errors"
	"log/slog"
)

// ErrAlreadyTerminal is returned when cancelling a job that already reached
// a terminal status.
var ErrAlreadyTerminal = errors.New("job: already terminal")

// SubmitInput contains the parameters for submitting a new job.
type SubmitInput struct {
	// JobID is the identifier minted at ingress.
	JobID string
	// Source is the media input.
	Source Source
	// RequestedLanguages lists language codes, native first.
	RequestedLanguages []string
	// CallbackURL is where the terminal notification goes.
	CallbackURL string
}

// Service exposes the gateway-facing job operations: submit, lookup and
// cancellation. Stage execution belongs to the pipeline orchestrator, not
// here; the service only creates the record and hands the job to the queue.
type Service struct {
	repo   Repository
	queue  Enqueuer
	logger *slog.Logger
}

// NewService creates a job Service.
func NewService(repo Repository, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		queue:  queue,
		logger: logger,
	}
}

// Submit creates the pending record and enqueues the ingress message.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Job, error) {
	j := New(input.JobID, input.Source, input.RequestedLanguages, input.CallbackURL)

	s.logger.Info("submitting job",
		slog.String("job_id", j.ID),
		slog.String("source_type", string(j.Source.Type)),
		slog.Any("languages", j.RequestedLanguages),
	)

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, NewIngressMessage(j), 0); err != nil {
		s.logger.Error("failed to enqueue job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return j, nil
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Cancel flags the job for cancellation. The orchestrator checks the flag
// before claiming a stage and again when persisting a stage result, so an
// in-flight provider call runs to completion but its output is discarded.
// Version conflicts are retried since the flag write commutes with any
// concurrent stage update.
func (s *Service) Cancel(ctx context.Context, id string) error {
	for {
		j, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if j.Status.IsTerminal() {
			return ErrAlreadyTerminal
		}
		if j.CancelRequested {
			return nil
		}
		j.CancelRequested = true
		err = s.repo.Update(ctx, j)
		if err == nil {
			s.logger.Info("cancellation requested", slog.String("job_id", id))
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
}
