package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mapproject/media-pipeline/internal/chapters"
	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/transcript"
)

// runStage executes the stage's provider calls and artifact uploads, which
// happen outside the record transaction, and returns a mutation that folds
// the outcome into the record. The mutation is re-applied on version
// conflicts, so it skips result keys that are already present.
func (o *Orchestrator) runStage(ctx context.Context, j *job.Job, stage job.Stage) (func(*job.Job) error, error) {
	switch stage {
	case job.StageCaption:
		return o.runCaption(ctx, j)
	case job.StageTranslate:
		return o.runTranslate(ctx, j)
	case job.StageChapters:
		return o.runChapters(ctx, j)
	default:
		return nil, fmt.Errorf("%w: %s", job.ErrUnknownStage, stage)
	}
}

func (o *Orchestrator) runCaption(ctx context.Context, j *job.Job) (func(*job.Job) error, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.TranscriptionTimeout)
	defer cancel()

	result, err := o.transcribe.Transcribe(callCtx, j.Source.Value)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	lang := j.NativeLanguage()
	srt := transcript.EncodeSRT(result.Segments)
	url, err := o.store.Put(ctx, artifactKey(j.ID, "captions", lang+".srt"), []byte(srt))
	if err != nil {
		return nil, fmt.Errorf("store captions: %w", err)
	}

	key := job.CaptionResultKey(lang)
	return func(rec *job.Job) error {
		rec.Segments = result.Segments
		rec.RawMarkers = result.RawMarkers
		if rec.HasResult(key) {
			return nil
		}
		return rec.AddResult(key, url)
	}, nil
}

func (o *Orchestrator) runTranslate(ctx context.Context, j *job.Job) (func(*job.Job) error, error) {
	type upload struct {
		key string
		url string
	}
	var uploads []upload

	// Languages that already have a persisted artifact are skipped, so a
	// retry after a mid-fan-out failure only redoes the missing ones.
	for _, lang := range j.TranslationLanguages() {
		key := job.TranslationResultKey(lang)
		if j.HasResult(key) {
			continue
		}

		translated, err := o.translateOne(ctx, j.Segments, lang)
		if err != nil {
			return nil, err
		}

		srt := transcript.EncodeSRT(translated)
		url, err := o.store.Put(ctx, artifactKey(j.ID, "translations", lang+".srt"), []byte(srt))
		if err != nil {
			return nil, fmt.Errorf("store %s translation: %w", lang, err)
		}
		uploads = append(uploads, upload{key: key, url: url})
	}

	return func(rec *job.Job) error {
		for _, u := range uploads {
			if rec.HasResult(u.key) {
				continue
			}
			if err := rec.AddResult(u.key, u.url); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (o *Orchestrator) translateOne(ctx context.Context, segments []transcript.Segment, lang string) ([]transcript.Segment, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.TranslationTimeout)
	defer cancel()

	translated, err := o.translate.Translate(callCtx, segments, lang)
	if err != nil {
		return nil, fmt.Errorf("translate %s: %w", lang, err)
	}
	if len(translated) != len(segments) {
		return nil, &ConsistencyError{
			Stage:  string(job.StageTranslate),
			Reason: fmt.Sprintf("%s: got %d segments, want %d", lang, len(translated), len(segments)),
		}
	}
	if !transcript.BoundariesEqual(segments, translated) {
		return nil, &ConsistencyError{
			Stage:  string(job.StageTranslate),
			Reason: fmt.Sprintf("%s: segment timing changed", lang),
		}
	}
	return translated, nil
}

func (o *Orchestrator) runChapters(ctx context.Context, j *job.Job) (func(*job.Job) error, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ChaptersTimeout)
	defer cancel()

	text := transcriptText(j.Segments)
	semantic, err := o.summarize.SummarizeChapters(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("summarize chapters: %w", err)
	}

	reconciled := chapters.Reconcile(j.RawMarkers, semantic, o.cfg.MergeTolerance)
	doc, err := chapters.EncodeJSON(reconciled)
	if err != nil {
		return nil, fmt.Errorf("encode chapters: %w", err)
	}

	url, err := o.store.Put(ctx, artifactKey(j.ID, "chapters", "chapters.json"), doc)
	if err != nil {
		return nil, fmt.Errorf("store chapters: %w", err)
	}

	return func(rec *job.Job) error {
		if rec.HasResult(job.ChaptersResultKey) {
			return nil
		}
		return rec.AddResult(job.ChaptersResultKey, url)
	}, nil
}

func transcriptText(segments []transcript.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func artifactKey(jobID, category, name string) string {
	return jobID + "/" + category + "/" + name
}
