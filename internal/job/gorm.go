package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mapproject/media-pipeline/internal/transcript"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// record is the database row backing a Job. Structured sub-objects are
// stored as JSON text so the row stays portable between SQLite and
// PostgreSQL; the fields the operators query on (status, timestamps) get
// their own columns.
type record struct {
	JobID           string `gorm:"primaryKey;column:job_id"`
	Status          string `gorm:"column:status;index"`
	CallbackURL     string `gorm:"column:callback_url"`
	Error           string `gorm:"column:error"`
	CancelRequested bool   `gorm:"column:cancel_requested"`
	SourceJSON      string `gorm:"column:source"`
	LanguagesJSON   string `gorm:"column:requested_languages"`
	StageStateJSON  string `gorm:"column:stage_state"`
	ResultsJSON     string `gorm:"column:results"`
	SegmentsJSON    string `gorm:"column:segments"`
	RawMarkersJSON  string `gorm:"column:raw_markers"`
	SubmittedAt     time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
	Version         int64 `gorm:"column:version"`
}

// TableName sets the table name for job records.
func (record) TableName() string { return "job_records" }

// GormRepository is the durable Repository backed by a relational database
// through GORM. Compare-and-set updates are expressed as a conditional
// UPDATE on the version column with a RowsAffected check, so the guarantee
// holds across processes and machines.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository bound to db and migrates the
// job_records table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate job records: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Create persists a new job row.
func (r *GormRepository) Create(ctx context.Context, j *Job) error {
	rec, err := toRecord(j)
	if err != nil {
		return err
	}
	rec.Version = 1
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrJobExists
		}
		// Drivers without ErrDuplicatedKey translation surface a raw
		// constraint error; check for an existing row to disambiguate.
		var count int64
		if cerr := r.db.WithContext(ctx).Model(&record{}).Where("job_id = ?", j.ID).Count(&count).Error; cerr == nil && count > 0 {
			return ErrJobExists
		}
		return fmt.Errorf("create job record: %w", err)
	}
	j.Version = 1
	return nil
}

// FindByID retrieves a job by ID.
func (r *GormRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	var rec record
	err := r.db.WithContext(ctx).First(&rec, "job_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("find job record: %w", err)
	}
	return fromRecord(&rec)
}

// Update performs the compare-and-set write. The WHERE clause pins both the
// job ID and the version the caller read; zero rows affected means a
// concurrent writer advanced the record first.
func (r *GormRepository) Update(ctx context.Context, j *Job) error {
	rec, err := toRecord(j)
	if err != nil {
		return err
	}
	nextVersion := j.Version + 1

	res := r.db.WithContext(ctx).
		Model(&record{}).
		Where("job_id = ? AND version = ?", j.ID, j.Version).
		Updates(map[string]interface{}{
			"status":           rec.Status,
			"error":            rec.Error,
			"cancel_requested": rec.CancelRequested,
			"stage_state":      rec.StageStateJSON,
			"results":          rec.ResultsJSON,
			"segments":         rec.SegmentsJSON,
			"raw_markers":      rec.RawMarkersJSON,
			"completed_at":     rec.CompletedAt,
			"updated_at":       rec.UpdatedAt,
			"version":          nextVersion,
		})
	if res.Error != nil {
		return fmt.Errorf("update job record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if cerr := r.db.WithContext(ctx).Model(&record{}).Where("job_id = ?", j.ID).Count(&count).Error; cerr != nil {
			return fmt.Errorf("update job record: %w", cerr)
		}
		if count == 0 {
			return ErrJobNotFound
		}
		return ErrVersionConflict
	}
	j.Version = nextVersion
	return nil
}

func toRecord(j *Job) (*record, error) {
	source, err := json.Marshal(j.Source)
	if err != nil {
		return nil, fmt.Errorf("encode source: %w", err)
	}
	languages, err := json.Marshal(j.RequestedLanguages)
	if err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}
	stageState, err := json.Marshal(j.StageState)
	if err != nil {
		return nil, fmt.Errorf("encode stage state: %w", err)
	}
	results, err := json.Marshal(j.Results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	segments, err := json.Marshal(j.Segments)
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	markers, err := json.Marshal(j.RawMarkers)
	if err != nil {
		return nil, fmt.Errorf("encode raw markers: %w", err)
	}

	rec := &record{
		JobID:           j.ID,
		Status:          string(j.Status),
		CallbackURL:     j.CallbackURL,
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
		SourceJSON:      string(source),
		LanguagesJSON:   string(languages),
		StageStateJSON:  string(stageState),
		ResultsJSON:     string(results),
		SegmentsJSON:    string(segments),
		RawMarkersJSON:  string(markers),
		SubmittedAt:     j.SubmittedAt,
		UpdatedAt:       j.UpdatedAt,
		Version:         j.Version,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec, nil
}

func fromRecord(rec *record) (*Job, error) {
	j := &Job{
		ID:              rec.JobID,
		Status:          Status(rec.Status),
		CallbackURL:     rec.CallbackURL,
		Error:           rec.Error,
		CancelRequested: rec.CancelRequested,
		SubmittedAt:     rec.SubmittedAt,
		UpdatedAt:       rec.UpdatedAt,
		Version:         rec.Version,
	}
	if rec.CompletedAt != nil {
		j.CompletedAt = *rec.CompletedAt
	}
	if err := json.Unmarshal([]byte(rec.SourceJSON), &j.Source); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.LanguagesJSON), &j.RequestedLanguages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.StageStateJSON), &j.StageState); err != nil {
		return nil, fmt.Errorf("decode stage state: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.ResultsJSON), &j.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if rec.SegmentsJSON != "" {
		if err := json.Unmarshal([]byte(rec.SegmentsJSON), &j.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	}
	if rec.RawMarkersJSON != "" {
		if err := json.Unmarshal([]byte(rec.RawMarkersJSON), &j.RawMarkers); err != nil {
			return nil, fmt.Errorf("decode raw markers: %w", err)
		}
	}
	if j.Results == nil {
		j.Results = make(map[string]string)
	}
	if j.StageState == nil {
		j.StageState = make(map[Stage]StageStatus)
	}
	if j.Segments == nil {
		j.Segments = []transcript.Segment{}
	}
	return j, nil
}
