// Package worker triggers reminder runs on a fixed interval inside the
// long-running server process.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/reminder"
)

// Runner executes one reminder run.
type Runner interface {
	Run(ctx context.Context) (*reminder.RunSummary, error)
}

type Config struct {
	Interval time.Duration

	// RunTimeout bounds a single run. Zero means the interval.
	RunTimeout time.Duration
}

type Worker struct {
	runner Runner
	config Config
	logger *zap.Logger
}

func New(runner Runner, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.Interval
	}

	return &Worker{
		runner: runner,
		config: cfg,
		logger: logger,
	}
}

// Start runs once immediately, then on every tick until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("reminder worker started", zap.Duration("interval", w.config.Interval))
	w.safeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopping")
			return
		case <-ticker.C:
			w.safeTick(ctx)
		}
	}
}

func (w *Worker) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reminder run panic recovered", zap.Any("panic", r))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	start := time.Now()
	summary, err := w.runner.Run(runCtx)
	switch {
	case errors.Is(err, reminder.ErrRunInProgress):
		w.logger.Info("reminder run skipped: another run in progress")
	case errors.Is(err, reminder.ErrSafetyCapExceeded):
		// the orchestrator already raised the critical log and alert
		w.logger.Warn("reminder run aborted", zap.Error(err))
	case err != nil:
		w.logger.Error("reminder run failed", zap.Error(err))
	default:
		w.logger.Info("reminder run completed",
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}
