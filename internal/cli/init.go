// Package cli holds the start-up steps shared by the spendwise commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendwise/internal/config"
	"spendwise/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from path (or the default
// locations when empty) and validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)
	return logger, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// GracefulShutdown waits for ctx to end, then gives shutdown at most
// timeout to finish.
func GracefulShutdown(ctx context.Context, logger *log.Logger, timeout time.Duration, shutdown func(context.Context) error) error {
	<-ctx.Done()
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := shutdown(shutdownCtx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	case err != nil:
		logger.Error("Shutdown error", log.FieldError, err)
	default:
		logger.Info("Shutdown complete")
	}
	return err
}
