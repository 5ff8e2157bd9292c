package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/ports"
)

// Runner is the part of Pipeline the scheduler needs.
type Runner interface {
	RunFull(ctx context.Context) (domain.RunReport, error)
}

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline Runner
	logger   *slog.Logger
	running  sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("scheduled run failed", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// RunOnce runs the pipeline unless a previous run is still going.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrRunInProgress
	}
	defer s.running.Unlock()

	_, err := s.pipeline.RunFull(ctx)
	return err
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
