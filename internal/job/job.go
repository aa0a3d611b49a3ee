// Package job provides the Job aggregate for the media pipeline.
// It includes the job-level and stage-level state machines and the
// repository port for durable, compare-and-set persistence.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/mapproject/media-pipeline/internal/transcript"
)

// Stage identifies one pipeline phase.
type Stage string

const (
	// StageCaption generates native-language captions from the media.
	StageCaption Stage = "caption"
	// StageTranslate translates captions into each non-native language.
	StageTranslate Stage = "translate"
	// StageChapters generates and reconciles chapter markers.
	StageChapters Stage = "chapters"
)

// IsValid returns true if the stage is one of the known pipeline stages.
func (s Stage) IsValid() bool {
	return s == StageCaption || s == StageTranslate || s == StageChapters
}

// StageState represents the state of a single stage.
type StageState string

const (
	// StageNotStarted indicates the stage has not been claimed yet.
	StageNotStarted StageState = "not_started"
	// StageInProgress indicates a worker holds the claim on the stage.
	StageInProgress StageState = "in_progress"
	// StageDone indicates the stage succeeded and its output validated.
	// Done is absorbing: a done stage is never re-executed.
	StageDone StageState = "done"
	// StageFailed indicates the last attempt failed. The stage may be
	// reclaimed while the retry budget lasts.
	StageFailed StageState = "failed"
)

// StageStatus tracks the progress of one stage within a job.
type StageStatus struct {
	// State is the current stage state.
	State StageState `json:"state"`
	// Attempts counts how many times the stage has been claimed.
	Attempts int `json:"attempts"`
	// LastError holds the message of the most recent failure.
	LastError string `json:"last_error,omitempty"`
}

// Status represents the overall state of a Job.
type Status string

const (
	// StatusPending indicates the job is created but no stage has run.
	StatusPending Status = "pending"
	// StatusProcessing indicates at least one stage has been claimed.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates every required stage reached done.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a stage exhausted its retry budget or the
	// job was cancelled.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceType distinguishes uploaded media from remote URLs.
type SourceType string

const (
	// SourceUpload references media previously uploaded to object storage.
	SourceUpload SourceType = "upload"
	// SourceURL references media at a remote URL.
	SourceURL SourceType = "url"
)

// IsValid returns true if the source type is known.
func (t SourceType) IsValid() bool {
	return t == SourceUpload || t == SourceURL
}

// Source is the media input for a job.
type Source struct {
	// Type says how Value should be interpreted.
	Type SourceType `json:"type"`
	// Value is the storage reference or remote URL.
	Value string `json:"value"`
}

// Static errors for state transitions and result bookkeeping.
var (
	// ErrInvalidTransition is returned when a status transition is not allowed.
	ErrInvalidTransition = errors.New("job: invalid state transition")
	// ErrStageConflict is returned when a stage claim or transition loses
	// against the stage's current state.
	ErrStageConflict = errors.New("job: stage state conflict")
	// ErrResultExists is returned when a result key would be overwritten.
	ErrResultExists = errors.New("job: result already recorded")
	// ErrUnknownStage is returned for stages outside the pipeline.
	ErrUnknownStage = errors.New("job: unknown stage")
)

// validTransitions defines the allowed job-level status transitions.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the unit of work tracked by the pipeline. Instances are snapshots
// loaded from the record store; workers never share a Job in memory, so all
// cross-worker synchronization happens through the store's compare-and-set
// Update rather than an in-process mutex.
type Job struct {
	// ID is the globally unique, client-meaningful job identifier.
	// Immutable once created.
	ID string `json:"job_id"`
	// Source is the media input.
	Source Source `json:"source"`
	// RequestedLanguages is the non-empty list of language codes. The
	// first entry is the native caption language.
	RequestedLanguages []string `json:"requested_languages"`
	// CallbackURL is the destination for the terminal notification.
	CallbackURL string `json:"callback_url"`
	// Status is the overall job status.
	Status Status `json:"status"`
	// StageState maps each pipeline stage to its progress.
	StageState map[Stage]StageStatus `json:"stage_state"`
	// Results maps stage/language keys (captions/<lang>,
	// translations/<lang>, chapters/reconciled) to artifact URLs.
	// Append-only: entries are never overwritten.
	Results map[string]string `json:"results"`
	// Segments holds the caption segments produced by the caption stage,
	// consumed by the translate and chapters stages.
	Segments []transcript.Segment `json:"segments,omitempty"`
	// RawMarkers holds the provider's raw chapter markers from the
	// caption stage, consumed by the chapters stage.
	RawMarkers []transcript.Marker `json:"raw_markers,omitempty"`
	// Error summarizes the first unrecoverable stage failure.
	Error string `json:"error,omitempty"`
	// CancelRequested is set by the gateway; honored between stages only.
	CancelRequested bool `json:"cancel_requested,omitempty"`
	// SubmittedAt is when the job was accepted at ingress.
	SubmittedAt time.Time `json:"submitted_at"`
	// CompletedAt is when the job reached a terminal status.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
	// Version is the optimistic concurrency token used by the record
	// store's compare-and-set Update.
	Version int64 `json:"version"`
}

// New creates a pending Job with every stage not started.
func New(id string, source Source, languages []string, callbackURL string) *Job {
	now := time.Now().UTC()
	langs := make([]string, len(languages))
	copy(langs, languages)
	return &Job{
		ID:                 id,
		Source:             source,
		RequestedLanguages: langs,
		CallbackURL:        callbackURL,
		Status:             StatusPending,
		StageState: map[Stage]StageStatus{
			StageCaption:   {State: StageNotStarted},
			StageTranslate: {State: StageNotStarted},
			StageChapters:  {State: StageNotStarted},
		},
		Results:     make(map[string]string),
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// NativeLanguage returns the caption language (first requested).
func (j *Job) NativeLanguage() string {
	if len(j.RequestedLanguages) == 0 {
		return ""
	}
	return j.RequestedLanguages[0]
}

// TranslationLanguages returns the requested non-native languages.
func (j *Job) TranslationLanguages() []string {
	if len(j.RequestedLanguages) < 2 {
		return nil
	}
	return j.RequestedLanguages[1:]
}

// RequiredStages returns the stages that must reach done for the job to
// complete. Translate is required only when non-native languages were
// requested.
func (j *Job) RequiredStages() []Stage {
	stages := []Stage{StageCaption}
	if len(j.TranslationLanguages()) > 0 {
		stages = append(stages, StageTranslate)
	}
	return append(stages, StageChapters)
}

// NextStages returns the stages currently eligible to run: caption first,
// then translate and chapters in parallel once caption is done. Stages
// already done or in progress are excluded; failed stages are included so
// they can be reclaimed while their retry budget lasts.
func (j *Job) NextStages() []Stage {
	if j.Status.IsTerminal() {
		return nil
	}
	if !j.StageDone(StageCaption) {
		return []Stage{StageCaption}
	}
	var next []Stage
	for _, stage := range j.RequiredStages() {
		if stage == StageCaption {
			continue
		}
		if st := j.StageState[stage]; st.State == StageNotStarted || st.State == StageFailed {
			next = append(next, stage)
		}
	}
	return next
}

// StageDone returns true if the stage has reached done.
func (j *Job) StageDone(stage Stage) bool {
	return j.StageState[stage].State == StageDone
}

// AllRequiredStagesDone returns true once every required stage is done.
func (j *Job) AllRequiredStagesDone() bool {
	for _, stage := range j.RequiredStages() {
		if !j.StageDone(stage) {
			return false
		}
	}
	return true
}

// ClaimStage attempts the not_started|failed -> in_progress transition and
// increments the attempt counter. Returns ErrStageConflict if the stage is
// already claimed or done; the caller treats that as "someone else owns it"
// and no-ops. The claim only becomes an advisory lock once the caller
// persists it through the record store's compare-and-set Update.
func (j *Job) ClaimStage(stage Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	st := j.StageState[stage]
	if st.State != StageNotStarted && st.State != StageFailed {
		return fmt.Errorf("%w: %s is %s", ErrStageConflict, stage, st.State)
	}
	st.State = StageInProgress
	st.Attempts++
	j.StageState[stage] = st
	if j.Status == StatusPending {
		j.Status = StatusProcessing
	}
	j.touch()
	return nil
}

// CompleteStage transitions a stage from in_progress to done.
func (j *Job) CompleteStage(stage Stage) error {
	st := j.StageState[stage]
	if st.State != StageInProgress {
		return fmt.Errorf("%w: complete %s from %s", ErrStageConflict, stage, st.State)
	}
	st.State = StageDone
	st.LastError = ""
	j.StageState[stage] = st
	j.touch()
	return nil
}

// FailStage transitions a stage from in_progress to failed, recording the
// error message for diagnostics and the callback payload.
func (j *Job) FailStage(stage Stage, errMsg string) error {
	st := j.StageState[stage]
	if st.State != StageInProgress {
		return fmt.Errorf("%w: fail %s from %s", ErrStageConflict, stage, st.State)
	}
	st.State = StageFailed
	st.LastError = errMsg
	j.StageState[stage] = st
	j.touch()
	return nil
}

// AddResult records an artifact URL under key. Results are append-only;
// writing an existing key returns ErrResultExists.
func (j *Job) AddResult(key, url string) error {
	if _, ok := j.Results[key]; ok {
		return fmt.Errorf("%w: %s", ErrResultExists, key)
	}
	j.Results[key] = url
	j.touch()
	return nil
}

// HasResult returns true if an artifact was already recorded under key.
func (j *Job) HasResult(key string) bool {
	_, ok := j.Results[key]
	return ok
}

// Complete transitions the job to completed. Only valid once every
// required stage is done.
func (j *Job) Complete() error {
	if !j.AllRequiredStagesDone() {
		return fmt.Errorf("%w: complete with unfinished stages", ErrInvalidTransition)
	}
	return j.transitionTo(StatusCompleted)
}

// Fail transitions the job to failed with a terminal error summary.
func (j *Job) Fail(errMsg string) error {
	if err := j.transitionTo(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

func (j *Job) transitionTo(status Status) error {
	if !canTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	j.touch()
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}

// Clone creates a deep copy of the job for safe hand-off between the
// record store and callers.
func (j *Job) Clone() *Job {
	clone := *j
	clone.RequestedLanguages = append([]string(nil), j.RequestedLanguages...)
	clone.StageState = make(map[Stage]StageStatus, len(j.StageState))
	for k, v := range j.StageState {
		clone.StageState[k] = v
	}
	clone.Results = make(map[string]string, len(j.Results))
	for k, v := range j.Results {
		clone.Results[k] = v
	}
	clone.Segments = append([]transcript.Segment(nil), j.Segments...)
	clone.RawMarkers = append([]transcript.Marker(nil), j.RawMarkers...)
	return &clone
}

// CaptionResultKey returns the results key for the native caption artifact.
func CaptionResultKey(lang string) string { return "captions/" + lang }

// TranslationResultKey returns the results key for a translated artifact.
func TranslationResultKey(lang string) string { return "translations/" + lang }

// ChaptersResultKey is the results key for the reconciled chapter artifact.
const ChaptersResultKey = "chapters/reconciled"
