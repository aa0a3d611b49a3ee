package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiredVariables(t *testing.T) {
	// Clear all environment variables
	clearEnv := func() {
		os.Unsetenv("PORT")
		os.Unsetenv("TRANSCRIPTION_API_KEY")
		os.Unsetenv("LLM_API_KEY")
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("DB_DRIVER")
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("S3_REGION")
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("LOG_LEVEL")
	}

	t.Run("missing TRANSCRIPTION_API_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("LLM_API_KEY", "test-llm-key")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTranscriptionKeyRequired)
	})

	t.Run("missing LLM_API_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("TRANSCRIPTION_API_KEY", "test-stt-key")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLLMKeyRequired)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("TRANSCRIPTION_API_KEY", "test-stt-key")
		t.Setenv("LLM_API_KEY", "test-llm-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-stt-key", cfg.TranscriptionAPIKey)
		assert.Equal(t, "test-llm-key", cfg.LLMAPIKey)
	})
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRANSCRIPTION_API_KEY", "test-stt-key")
	t.Setenv("LLM_API_KEY", "test-llm-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, "media:jobs", cfg.RedisQueueKey)
	assert.Equal(t, 120*time.Second, cfg.TranscriptionTimeout)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 3, cfg.StageMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.StageBackoffBase)
	assert.Equal(t, 5*time.Second, cfg.ChapterMergeTolerance)
	assert.Equal(t, 5, cfg.CallbackMaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.CallbackWindow)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.False(t, cfg.S3Enabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{TranscriptionAPIKey: "a", LLMAPIKey: "b"}
	assert.NoError(t, cfg.Validate())

	cfg.TranscriptionAPIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrTranscriptionKeyRequired)

	cfg = &Config{TranscriptionAPIKey: "a"}
	assert.ErrorIs(t, cfg.Validate(), ErrLLMKeyRequired)
}

func TestNewLogger(t *testing.T) {
	t.Run("json format emits json", func(t *testing.T) {
		cfg := &Config{LogFormat: "json", LogLevel: "info"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
	})

	t.Run("debug level is honored", func(t *testing.T) {
		var buf bytes.Buffer
		handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
			Level: parseLogLevel("debug"),
		})
		logger := slog.New(handler)
		logger.Debug("visible")
		assert.Contains(t, buf.String(), "visible")
	})
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Port:                8080,
		TranscriptionAPIKey: "super-secret",
		LLMAPIKey:           "also-secret",
		DBDriver:            "postgres",
	}

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "also-secret")
	assert.Contains(t, s, "postgres")
}
