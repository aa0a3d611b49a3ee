// Package main provides the entry point for the media pipeline worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mapproject/media-pipeline/internal/bootstrap"
	"github.com/mapproject/media-pipeline/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting media pipeline worker",
		slog.Int("worker_count", cfg.WorkerCount),
		slog.String("db_driver", cfg.DBDriver),
		slog.Bool("redis_enabled", cfg.RedisEnabled()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Int("stage_max_attempts", cfg.StageMaxAttempts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer deps.Queue.Close()

	// Run blocks until the context is cancelled, then drains in-flight
	// messages before returning.
	deps.Pool.Run(ctx)

	logger.Info("worker stopped gracefully")
	return nil
}
