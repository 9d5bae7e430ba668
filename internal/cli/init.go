// Package cli provides the process bootstrap shared by the kakeibo commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kakeibo/internal/config"
	"kakeibo/internal/log"
)

// SetupLogger builds the process logger from cfg and sets it as the default
// slog logger, so packages logging through slog.*Context share the handler.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, optionally from a TOML file,
// and validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadWithFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs once; stop releases the signal handler.
func GracefulShutdown(parent context.Context, logger *log.Logger, cleanup func()) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			if cleanup != nil {
				cleanup()
			}
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

// Runner is one long-lived part of a process.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervise runs every runner until ctx is done or one of them fails; the
// first failure cancels the rest. Runners stopping because ctx ended are not
// failures. Runners that have not returned within timeout of the
// cancellation are abandoned.
func Supervise(ctx context.Context, logger *log.Logger, timeout time.Duration, runners ...Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		if r.Run == nil {
			continue
		}
		g.Go(func() error {
			logger.Debug("Runner started", "runner", r.Name)
			err := r.Run(gctx)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			logger.Debug("Runner stopped", "runner", r.Name)
			return nil
		})
	}

	result := make(chan error, 1)
	go func() { result <- g.Wait() }()

	select {
	case err := <-result:
		return err
	case <-gctx.Done():
	}

	select {
	case err := <-result:
		return err
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached")
		return nil
	}
}
