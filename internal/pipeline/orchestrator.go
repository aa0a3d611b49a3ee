// Package pipeline drives jobs through their stages. The orchestrator
// consumes queue messages, claims stages through the record store's
// compare-and-set update, executes providers with per-call timeouts,
// and finalizes terminal jobs exactly once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mapproject/media-pipeline/internal/artifact"
	"github.com/mapproject/media-pipeline/internal/callback"
	"github.com/mapproject/media-pipeline/internal/chapters"
	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/transcription"
	"github.com/mapproject/media-pipeline/internal/translation"
)

// Notifier delivers the terminal notification for a job. Satisfied by
// callback.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, j *job.Job) error
}

var _ Notifier = (*callback.Dispatcher)(nil)

// Config holds the orchestrator's retry and timeout settings.
type Config struct {
	// MaxAttempts bounds claims per stage before the job fails.
	MaxAttempts int
	// BackoffBase is the first retry delay for a stage; doubles per
	// attempt.
	BackoffBase time.Duration
	// TranscriptionTimeout bounds the caption provider call.
	TranscriptionTimeout time.Duration
	// TranslationTimeout bounds each per-language translation call.
	TranslationTimeout time.Duration
	// ChaptersTimeout bounds the semantic chapter call.
	ChaptersTimeout time.Duration
	// MergeTolerance is the window within which raw and semantic
	// chapter markers are considered the same chapter.
	MergeTolerance time.Duration
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          3,
		BackoffBase:          2 * time.Second,
		TranscriptionTimeout: 120 * time.Second,
		TranslationTimeout:   60 * time.Second,
		ChaptersTimeout:      60 * time.Second,
		MergeTolerance:       chapters.DefaultMergeTolerance,
	}
}

// Orchestrator handles one queue message at a time, advancing the job it
// references by exactly one stage execution.
type Orchestrator struct {
	repo       job.Repository
	queue      job.Enqueuer
	transcribe transcription.Client
	translate  translation.Translator
	summarize  chapters.Summarizer
	store      artifact.Store
	notifier   Notifier
	validate   *validator.Validate
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator wires the orchestrator's ports together.
func NewOrchestrator(
	repo job.Repository,
	queue job.Enqueuer,
	transcriber transcription.Client,
	translator translation.Translator,
	summarizer chapters.Summarizer,
	store artifact.Store,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.TranscriptionTimeout <= 0 {
		cfg.TranscriptionTimeout = def.TranscriptionTimeout
	}
	if cfg.TranslationTimeout <= 0 {
		cfg.TranslationTimeout = def.TranslationTimeout
	}
	if cfg.ChaptersTimeout <= 0 {
		cfg.ChaptersTimeout = def.ChaptersTimeout
	}
	if cfg.MergeTolerance <= 0 {
		cfg.MergeTolerance = def.MergeTolerance
	}
	return &Orchestrator{
		repo:       repo,
		queue:      queue,
		transcribe: transcriber,
		translate:  translator,
		summarize:  summarizer,
		store:      store,
		notifier:   notifier,
		validate:   validator.New(),
		cfg:        cfg,
		logger:     logger,
	}
}

// Handle processes one queue message end-to-end. It returns an error only
// for infrastructure failures (record store unreachable); callers should
// re-enqueue the message in that case. Stage failures are handled inside
// via the retry policy and never surface here.
func (o *Orchestrator) Handle(ctx context.Context, msg job.Message) error {
	if err := o.validateMessage(msg); err != nil {
		o.logger.Error("dropping invalid message",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	j, err := o.loadOrCreate(ctx, msg)
	if err != nil {
		return err
	}
	if j == nil {
		return nil
	}
	if j.Status.IsTerminal() {
		// Redelivery of an already finished job is a no-op.
		return nil
	}

	if j.CancelRequested && !anyStageInProgress(j) {
		return o.finalizeCancelled(ctx, j)
	}

	stage, ok := o.targetStage(j, msg)
	if !ok {
		// A redelivered continuation whose stage already finished may be
		// the only message left for this job: if the follow-up enqueues
		// were lost, pure no-op would strand the job in processing.
		// Re-derive and schedule the eligible stages; the claim guard
		// makes duplicates harmless.
		if msg.Type == job.MessageContinuation && j.StageDone(msg.Stage) {
			return o.scheduleNext(ctx, j, true)
		}
		return nil
	}

	j, claimed, err := o.claimStage(ctx, j, stage)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	logger := o.logger.With(
		slog.String("job_id", j.ID),
		slog.String("stage", string(stage)),
		slog.Int("attempt", j.StageState[stage].Attempts),
	)
	logger.Info("stage claimed")

	mutate, stageErr := o.runStage(ctx, j, stage)
	if stageErr != nil {
		return o.handleStageFailure(ctx, j, stage, stageErr, logger)
	}
	return o.handleStageSuccess(ctx, j, stage, mutate, logger)
}

func (o *Orchestrator) validateMessage(msg job.Message) error {
	if err := o.validate.Struct(msg); err != nil {
		return &ValidationError{Err: err}
	}
	switch msg.Type {
	case job.MessageContinuation:
		if !msg.Stage.IsValid() {
			return &ValidationError{Err: fmt.Errorf("continuation without a valid stage: %q", msg.Stage)}
		}
	case job.MessageIngress:
		// Ingress messages can create the record, so the submission
		// fields must hold the record's invariants themselves.
		if len(msg.RequestedLanguages) == 0 {
			return &ValidationError{Err: errors.New("ingress without requested languages")}
		}
		if !msg.Source.Type.IsValid() || msg.Source.Value == "" {
			return &ValidationError{Err: fmt.Errorf("ingress with invalid source type %q", msg.Source.Type)}
		}
	}
	return nil
}

// loadOrCreate resolves the message to a job record. Ingress messages
// create the record when it is missing so a lost gateway write does not
// strand the submission. A nil job with nil error means the message
// should be acked without work.
func (o *Orchestrator) loadOrCreate(ctx context.Context, msg job.Message) (*job.Job, error) {
	j, err := o.repo.FindByID(ctx, msg.JobID)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, job.ErrJobNotFound) {
		return nil, fmt.Errorf("load job %s: %w", msg.JobID, err)
	}
	if msg.Type != job.MessageIngress {
		o.logger.Error("dropping continuation for unknown job",
			slog.String("job_id", msg.JobID),
			slog.String("stage", string(msg.Stage)),
		)
		return nil, nil
	}

	j = job.New(msg.JobID, msg.Source, msg.RequestedLanguages, msg.CallbackURL)
	if err := o.repo.Create(ctx, j); err != nil {
		if errors.Is(err, job.ErrJobExists) {
			return o.repo.FindByID(ctx, msg.JobID)
		}
		return nil, fmt.Errorf("create job %s: %w", msg.JobID, err)
	}
	return j, nil
}

// targetStage picks the stage this message should run. Continuation
// messages name their stage; ingress messages start at the front of the
// pipeline. A stage that is no longer eligible (already done or owned by
// another worker) makes the message a no-op.
func (o *Orchestrator) targetStage(j *job.Job, msg job.Message) (job.Stage, bool) {
	next := j.NextStages()
	if len(next) == 0 {
		return "", false
	}
	if msg.Type == job.MessageIngress {
		return next[0], true
	}
	for _, stage := range next {
		if stage == msg.Stage {
			return stage, true
		}
	}
	return "", false
}

// claimStage takes the advisory lock on the stage: the in-memory claim
// followed by a compare-and-set update. Losing either race means another
// worker owns the stage and this delivery is a no-op.
func (o *Orchestrator) claimStage(ctx context.Context, j *job.Job, stage job.Stage) (*job.Job, bool, error) {
	for {
		if err := j.ClaimStage(stage); err != nil {
			if errors.Is(err, job.ErrStageConflict) {
				return j, false, nil
			}
			return j, false, err
		}
		err := o.repo.Update(ctx, j)
		if err == nil {
			return j, true, nil
		}
		if !errors.Is(err, job.ErrVersionConflict) {
			return j, false, fmt.Errorf("persist claim %s/%s: %w", j.ID, stage, err)
		}
		fresh, ferr := o.repo.FindByID(ctx, j.ID)
		if ferr != nil {
			return j, false, fmt.Errorf("reload after claim conflict %s: %w", j.ID, ferr)
		}
		if fresh.Status.IsTerminal() {
			return fresh, false, nil
		}
		j = fresh
	}
}

func (o *Orchestrator) handleStageSuccess(ctx context.Context, j *job.Job, stage job.Stage, mutate func(*job.Job) error, logger *slog.Logger) error {
	finalized := false
	cancelled := false
	j, err := o.persist(ctx, j, func(rec *job.Job) error {
		finalized = false
		cancelled = false
		if rec.Status.IsTerminal() {
			// A sibling already finalized the job. Terminal records
			// stay as they were reported; the stage output is
			// discarded.
			return errAbortPersist
		}
		if rec.CancelRequested {
			// The cancel request landed while the provider call was
			// in flight: discard its output and finalize.
			cancelled = true
			if err := rec.FailStage(stage, "cancelled"); err != nil {
				return err
			}
			return rec.Fail("cancelled")
		}
		if err := mutate(rec); err != nil {
			return err
		}
		if err := rec.CompleteStage(stage); err != nil {
			return err
		}
		if rec.AllRequiredStagesDone() {
			if err := rec.Complete(); err != nil {
				return err
			}
			finalized = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist %s/%s completion: %w", j.ID, stage, err)
	}
	if cancelled {
		logger.Info("job cancelled, stage output discarded")
		o.dispatch(ctx, j)
		return nil
	}
	if j.Status.IsTerminal() && !finalized {
		logger.Info("job already finalized, stage output discarded")
		return nil
	}
	logger.Info("stage done")

	if finalized {
		logger.Info("job completed")
		o.dispatch(ctx, j)
		return nil
	}
	return o.scheduleNext(ctx, j, false)
}

// scheduleNext enqueues continuation messages for the currently eligible
// stages. Failed stages are skipped on the normal success path because
// their retry is already parked on the queue with its backoff delay;
// recovery after a redelivery includes them since that parked message may
// be the one that was lost.
func (o *Orchestrator) scheduleNext(ctx context.Context, j *job.Job, includeFailed bool) error {
	for _, next := range j.NextStages() {
		if !includeFailed && j.StageState[next].State == job.StageFailed {
			continue
		}
		if err := o.queue.Enqueue(ctx, job.NewContinuationMessage(j.ID, next), 0); err != nil {
			return fmt.Errorf("enqueue %s/%s: %w", j.ID, next, err)
		}
	}
	return nil
}

func (o *Orchestrator) handleStageFailure(ctx context.Context, j *job.Job, stage job.Stage, stageErr error, logger *slog.Logger) error {
	attempts := j.StageState[stage].Attempts
	retryable := isTransient(stageErr) && attempts < o.cfg.MaxAttempts

	if retryable {
		j, err := o.persist(ctx, j, func(rec *job.Job) error {
			if rec.Status.IsTerminal() {
				return errAbortPersist
			}
			return rec.FailStage(stage, stageErr.Error())
		})
		if err != nil {
			return fmt.Errorf("persist %s/%s failure: %w", j.ID, stage, err)
		}
		if j.Status.IsTerminal() {
			return nil
		}
		delay := o.backoff(attempts)
		logger.Warn("stage failed, retrying",
			slog.String("error", stageErr.Error()),
			slog.Duration("delay", delay),
		)
		if err := o.queue.Enqueue(ctx, job.NewContinuationMessage(j.ID, stage), delay); err != nil {
			return fmt.Errorf("enqueue retry %s/%s: %w", j.ID, stage, err)
		}
		return nil
	}

	reason := fmt.Sprintf("stage %s failed after %d attempt(s): %s", stage, attempts, stageErr)
	finalized := false
	j, err := o.persist(ctx, j, func(rec *job.Job) error {
		finalized = false
		if rec.Status.IsTerminal() {
			return errAbortPersist
		}
		if err := rec.FailStage(stage, stageErr.Error()); err != nil {
			return err
		}
		if err := rec.Fail(reason); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist %s/%s terminal failure: %w", j.ID, stage, err)
	}
	if !finalized {
		logger.Info("job already finalized, stage failure discarded")
		return nil
	}
	logger.Error("job failed", slog.String("error", stageErr.Error()))
	o.dispatch(ctx, j)
	return nil
}

func (o *Orchestrator) finalizeCancelled(ctx context.Context, j *job.Job) error {
	finalized := false
	j, err := o.persist(ctx, j, func(rec *job.Job) error {
		finalized = false
		if rec.Status.IsTerminal() {
			return nil
		}
		if err := rec.Fail("cancelled"); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist cancellation %s: %w", j.ID, err)
	}
	if finalized {
		o.logger.Info("job cancelled", slog.String("job_id", j.ID))
		o.dispatch(ctx, j)
	}
	return nil
}

// errAbortPersist is returned by a persist mutation that decided, after
// seeing the current snapshot, that no write should happen.
var errAbortPersist = errors.New("pipeline: abort persist")

// persist applies the mutation and writes the record, reloading and
// re-applying on version conflict. The mutation must tolerate re-running
// against a fresher snapshot.
func (o *Orchestrator) persist(ctx context.Context, j *job.Job, apply func(*job.Job) error) (*job.Job, error) {
	for {
		if err := apply(j); err != nil {
			if errors.Is(err, errAbortPersist) {
				return j, nil
			}
			return j, err
		}
		err := o.repo.Update(ctx, j)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, job.ErrVersionConflict) {
			return j, err
		}
		fresh, ferr := o.repo.FindByID(ctx, j.ID)
		if ferr != nil {
			return j, ferr
		}
		j = fresh
	}
}

// dispatch fires the terminal notification. Delivery failure is logged by
// the dispatcher and never alters job state.
func (o *Orchestrator) dispatch(ctx context.Context, j *job.Job) {
	if j.CallbackURL == "" {
		return
	}
	if err := o.notifier.Dispatch(ctx, j); err != nil {
		o.logger.Error("terminal notification failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) backoff(attempts int) time.Duration {
	delay := o.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

func anyStageInProgress(j *job.Job) bool {
	for _, st := range j.StageState {
		if st.State == job.StageInProgress {
			return true
		}
	}
	return false
}
