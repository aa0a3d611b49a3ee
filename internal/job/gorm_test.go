package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepo(t *testing.T) *GormRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "jobs.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := NewGormRepository(db)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	return repo
}

func TestGormRepository_RoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	j := newTestJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != j.ID || found.Status != StatusPending || found.Version != 1 {
		t.Errorf("unexpected job after round trip: %+v", found)
	}
	if found.NativeLanguage() != "en" {
		t.Errorf("requested languages lost: %v", found.RequestedLanguages)
	}
	if found.StageState[StageCaption].State != StageNotStarted {
		t.Errorf("stage state lost: %+v", found.StageState)
	}

	if err := repo.Create(ctx, newTestJob()); !errors.Is(err, ErrJobExists) {
		t.Errorf("expected ErrJobExists, got %v", err)
	}
}

func TestGormRepository_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := repo.Update(context.Background(), newTestJob()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGormRepository_Update_CompareAndSet(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	j := newTestJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := repo.FindByID(ctx, j.ID)
	b, _ := repo.FindByID(ctx, j.ID)

	_ = a.ClaimStage(StageCaption)
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("first writer must win: %v", err)
	}

	_ = b.ClaimStage(StageCaption)
	if err := repo.Update(ctx, b); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("second writer must lose with ErrVersionConflict, got %v", err)
	}

	reloaded, _ := repo.FindByID(ctx, j.ID)
	if reloaded.Version != 2 {
		t.Errorf("expected version 2, got %d", reloaded.Version)
	}
	if reloaded.StageState[StageCaption].Attempts != 1 {
		t.Errorf("expected single claim to persist, got %d",
			reloaded.StageState[StageCaption].Attempts)
	}
}

func TestGormRepository_Update_DatabaseErrorIsNotMaskedAsConflict(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	j := newTestJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sqlDB, err := repo.db.DB()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = repo.Update(ctx, j)
	if err == nil {
		t.Fatal("expected an error from a closed database")
	}
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrJobNotFound) {
		t.Errorf("database error reported as a repository outcome: %v", err)
	}
}

func TestGormRepository_PersistsResultsAndSegments(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	j := newTestJob()
	_ = repo.Create(ctx, j)

	_ = j.ClaimStage(StageCaption)
	_ = j.AddResult(CaptionResultKey("en"), "https://bucket/captions_en.srt")
	j.Segments = testSegments()
	_ = j.CompleteStage(StageCaption)
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, _ := repo.FindByID(ctx, j.ID)
	if found.Results["captions/en"] != "https://bucket/captions_en.srt" {
		t.Errorf("results lost: %v", found.Results)
	}
	if len(found.Segments) != len(j.Segments) {
		t.Errorf("segments lost: %d vs %d", len(found.Segments), len(j.Segments))
	}
	if !found.StageDone(StageCaption) {
		t.Error("caption stage state lost")
	}
}
