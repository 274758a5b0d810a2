package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/go-co-op/gocron"
)

// Runner executes one complete pipeline pass.
type Runner interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Scheduler re-runs the pipeline on a fixed interval. Runs never overlap; a
// tick that fires while a run is in flight is dropped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler. The first run starts as soon as Start is called.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the pipeline job and starts the underlying scheduler.
// Runs use ctx, so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		report, err := s.runner.Run(ctx)
		if err != nil {
			s.logger.Error("scheduled run failed", "run_id", report.RunID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info("scheduler started", "interval", s.interval)
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
