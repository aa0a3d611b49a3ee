// Package bootstrap provides dependency initialization for the gateway
// and worker processes.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mapproject/media-pipeline/internal/artifact"
	"github.com/mapproject/media-pipeline/internal/callback"
	"github.com/mapproject/media-pipeline/internal/chapters"
	"github.com/mapproject/media-pipeline/internal/config"
	"github.com/mapproject/media-pipeline/internal/job"
	"github.com/mapproject/media-pipeline/internal/llm"
	"github.com/mapproject/media-pipeline/internal/pipeline"
	"github.com/mapproject/media-pipeline/internal/queue"
	"github.com/mapproject/media-pipeline/internal/transcription"
	"github.com/mapproject/media-pipeline/internal/translation"
)

// Dependencies holds the initialized components shared by the gateway and
// worker binaries. Both processes build the same graph; the gateway only
// uses JobService while the worker only uses Pool.
type Dependencies struct {
	JobService *job.Service
	Pool       *pipeline.Pool
	Queue      queue.Queue
}

// NewDependencies creates and initializes all dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	q, err := initQueue(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	transcriber, err := transcription.NewClient(cfg.TranscriptionBaseURL, cfg.TranscriptionAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create transcription client: %w", err)
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	dispatcher := callback.NewDispatcher(callback.Config{
		MaxAttempts: cfg.CallbackMaxAttempts,
		Window:      cfg.CallbackWindow,
		BackoffBase: cfg.CallbackBackoffBase,
		AuthMode:    callback.AuthMode(cfg.CallbackAuthMode),
		Secret:      cfg.CallbackSecret,
	}, logger)

	orch := pipeline.NewOrchestrator(
		repo,
		q,
		transcriber,
		translation.NewLLMTranslator(llmClient),
		chapters.NewLLMSummarizer(llmClient),
		store,
		dispatcher,
		pipeline.Config{
			MaxAttempts:          cfg.StageMaxAttempts,
			BackoffBase:          cfg.StageBackoffBase,
			TranscriptionTimeout: cfg.TranscriptionTimeout,
			TranslationTimeout:   cfg.ProviderTimeout,
			ChaptersTimeout:      cfg.ProviderTimeout,
			MergeTolerance:       cfg.ChapterMergeTolerance,
		},
		logger,
	)

	return &Dependencies{
		JobService: job.NewService(repo, q, logger),
		Pool:       pipeline.NewPool(q, orch, cfg.WorkerCount, logger),
		Queue:      q,
	}, nil
}

// initRepository selects the record store backend based on configuration.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	switch cfg.DBDriver {
	case "", "memory":
		logger.Info("in-memory record store configured")
		return job.NewMemoryRepository(), nil
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DBDSN), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("sqlite record store configured", slog.String("dsn", cfg.DBDSN))
		return job.NewGormRepository(db)
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("postgres record store configured")
		return job.NewGormRepository(db)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// initQueue selects the queue backend based on configuration.
func initQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Queue, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory queue configured")
		return queue.NewMemoryQueue(0), nil
	}
	q, err := queue.NewRedisQueue(ctx, queue.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Key:      cfg.RedisQueueKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis queue: %w", err)
	}
	logger.Info("redis queue configured",
		slog.String("addr", cfg.RedisAddr),
		slog.String("key", cfg.RedisQueueKey),
	)
	return q, nil
}

// initStorage creates the appropriate artifact store based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (artifact.Store, error) {
	if cfg.S3Enabled() {
		s3Store, err := artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 artifact storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := artifact.NewLocalStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local artifact storage configured",
		slog.String("dir", cfg.ArtifactDir),
	)
	return localStore, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
}
