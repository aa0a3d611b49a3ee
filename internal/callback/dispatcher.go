// Package callback delivers the terminal job notification to the client's
// callback URL. Delivery is at-least-once: the dispatcher retries with
// exponential backoff within a bounded attempt count and time window, and
// the receiving client is expected to dedupe on job_id and status.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mapproject/media-pipeline/internal/job"
)

// AuthMode selects how callback requests authenticate to the client.
type AuthMode string

const (
	// AuthNone sends no credentials.
	AuthNone AuthMode = "none"
	// AuthBearer sends an Authorization: Bearer header.
	AuthBearer AuthMode = "bearer"
	// AuthSharedSecret sends the secret in X-Callback-Secret.
	AuthSharedSecret AuthMode = "secret"
)

// ErrDeliveryExhausted is returned when every delivery attempt failed.
// Callers log it; job status is never rolled back on delivery failure.
var ErrDeliveryExhausted = errors.New("callback: delivery attempts exhausted")

// Config holds the dispatcher's retry and authentication settings.
type Config struct {
	// MaxAttempts bounds the number of delivery attempts.
	MaxAttempts int
	// Window bounds the total time spent on one delivery sequence.
	Window time.Duration
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// RequestTimeout bounds each individual POST.
	RequestTimeout time.Duration
	// AuthMode selects the authentication scheme.
	AuthMode AuthMode
	// Secret is the bearer token or shared secret.
	Secret string
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		Window:         30 * time.Minute,
		BackoffBase:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		AuthMode:       AuthNone,
	}
}

// Dispatcher posts terminal payloads to callback URLs.
type Dispatcher struct {
	client *resty.Client
	cfg    Config
	logger *slog.Logger
}

// NewDispatcher creates a callback dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	client := resty.New()
	client.SetTimeout(cfg.RequestTimeout)
	client.SetHeader("Content-Type", "application/json")

	return &Dispatcher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Dispatch derives the payload from the persisted record and delivers it.
// Safe to invoke more than once for the same job: the payload carries no
// dispatcher state, so redelivery after a restart produces an identical
// notification.
func (d *Dispatcher) Dispatch(ctx context.Context, j *job.Job) error {
	payload := BuildPayload(j)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Window)
	defer cancel()

	backoff := d.cfg.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: window closed: %v", ErrDeliveryExhausted, lastErr)
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := d.post(ctx, j.CallbackURL, payload)
		if err == nil {
			d.logger.Info("callback delivered",
				slog.String("job_id", j.ID),
				slog.String("status", payload.Status),
				slog.Int("attempt", attempt),
			)
			return nil
		}
		lastErr = err
		d.logger.Warn("callback attempt failed",
			slog.String("job_id", j.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	d.logger.Error("callback delivery permanently failed",
		slog.String("job_id", j.ID),
		slog.String("callback_url", j.CallbackURL),
		slog.Int("attempts", d.cfg.MaxAttempts),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("%w: %v", ErrDeliveryExhausted, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, url string, payload Payload) error {
	req := d.client.R().SetContext(ctx).SetBody(payload)

	switch d.cfg.AuthMode {
	case AuthBearer:
		req.SetHeader("Authorization", "Bearer "+d.cfg.Secret)
	case AuthSharedSecret:
		req.SetHeader("X-Callback-Secret", d.cfg.Secret)
	}

	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("callback returned status %d", resp.StatusCode())
	}
	return nil
}
