// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrTranscriptionKeyRequired is returned when TRANSCRIPTION_API_KEY is not set.
	ErrTranscriptionKeyRequired = errors.New("config: TRANSCRIPTION_API_KEY is required")
	// ErrLLMKeyRequired is returned when LLM_API_KEY is not set.
	ErrLLMKeyRequired = errors.New("config: LLM_API_KEY is required")
)

// Config holds all configuration for the gateway and worker processes.
type Config struct {
	// Server settings
	Port     int    `env:"PORT, default=8080" json:"port"`
	APIToken string `env:"API_TOKEN" json:"-"` // Masked in JSON

	// Queue settings. An empty REDIS_ADDR selects the in-memory queue,
	// which only makes sense when gateway and worker share a process.
	RedisAddr     string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisQueueKey string `env:"REDIS_QUEUE_KEY, default=media:jobs" json:"redis_queue_key"`

	// Record store settings. Driver is one of "memory", "sqlite",
	// "postgres".
	DBDriver string `env:"DB_DRIVER, default=memory" json:"db_driver"`
	DBDSN    string `env:"DB_DSN" json:"-"` // Masked in JSON

	// Artifact storage settings. S3 is used when bucket and region are
	// set; otherwise artifacts land on the local filesystem.
	ArtifactDir        string `env:"ARTIFACT_DIR, default=/tmp/media-pipeline" json:"artifact_dir"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Transcription provider settings
	TranscriptionBaseURL string        `env:"TRANSCRIPTION_BASE_URL, default=https://api.assemblyai.com" json:"transcription_base_url"`
	TranscriptionAPIKey  string        `env:"TRANSCRIPTION_API_KEY, required" json:"-"` // Masked in JSON
	TranscriptionTimeout time.Duration `env:"TRANSCRIPTION_TIMEOUT, default=120s" json:"transcription_timeout"`

	// LLM provider settings (translation and chapter summarization)
	LLMBaseURL      string        `env:"LLM_BASE_URL" json:"llm_base_url,omitempty"`
	LLMAPIKey       string        `env:"LLM_API_KEY, required" json:"-"` // Masked in JSON
	LLMModel        string        `env:"LLM_MODEL" json:"llm_model,omitempty"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT, default=60s" json:"provider_timeout"`

	// Stage retry policy
	StageMaxAttempts      int           `env:"STAGE_MAX_ATTEMPTS, default=3" json:"stage_max_attempts"`
	StageBackoffBase      time.Duration `env:"STAGE_BACKOFF_BASE, default=2s" json:"stage_backoff_base"`
	ChapterMergeTolerance time.Duration `env:"CHAPTER_MERGE_TOLERANCE, default=5s" json:"chapter_merge_tolerance"`

	// Callback delivery settings
	CallbackMaxAttempts int           `env:"CALLBACK_MAX_ATTEMPTS, default=5" json:"callback_max_attempts"`
	CallbackWindow      time.Duration `env:"CALLBACK_WINDOW, default=30m" json:"callback_window"`
	CallbackBackoffBase time.Duration `env:"CALLBACK_BACKOFF_BASE, default=5s" json:"callback_backoff_base"`
	CallbackAuthMode    string        `env:"CALLBACK_AUTH_MODE, default=none" json:"callback_auth_mode"` // "none", "bearer" or "secret"
	CallbackSecret      string        `env:"CALLBACK_SECRET" json:"-"`                                   // Masked in JSON

	// Worker settings
	WorkerCount int `env:"WORKER_COUNT, default=4" json:"worker_count"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 artifact storage is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if a Redis queue is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "TRANSCRIPTION_API_KEY") {
			return nil, ErrTranscriptionKeyRequired
		}
		if strings.Contains(err.Error(), "LLM_API_KEY") {
			return nil, ErrLLMKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.TranscriptionAPIKey == "" {
		return ErrTranscriptionKeyRequired
	}
	if c.LLMAPIKey == "" {
		return ErrLLMKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DBDriver: %s, RedisAddr: %s, S3Bucket: %s, S3Region: %s, WorkerCount: %d, StageMaxAttempts: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DBDriver,
		c.RedisAddr,
		c.S3Bucket,
		c.S3Region,
		c.WorkerCount,
		c.StageMaxAttempts,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
