package orchestrator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dirsave/dirsave/internal/logging"
)

// Scheduler ticks the orchestrator on a cron schedule until the context
// is cancelled. Every tick is a cheap due-time check; the interval logic
// in ShouldRun decides whether a backup actually runs.
type Scheduler struct {
	orch     *Orchestrator
	logger   *logging.Logger
	schedule string
}

// NewScheduler creates a scheduler for the given cron expression.
// Descriptors like "@every 5m" and "@hourly" are accepted.
func NewScheduler(orch *Orchestrator, logger *logging.Logger, schedule string) *Scheduler {
	return &Scheduler{
		orch:     orch,
		logger:   logger,
		schedule: schedule,
	}
}

// Run blocks until ctx is cancelled, waiting for in-flight ticks to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	if _, err := parser.Parse(s.schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("cannot schedule backups: %w", err)
	}

	s.logger.Info("Scheduler started (%s)", s.schedule)

	// One immediate tick so a machine that was off past its interval
	// catches up without waiting for the next cron slot.
	s.tick(ctx)

	c.Start()
	<-ctx.Done()

	s.logger.Info("Scheduler stopping")
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.orch.RunBackup(ctx, false)
	if err != nil {
		s.logger.Error("Scheduled backup failed: %v", err)
		return
	}
	if result.Outcome == OutcomeSkipped {
		s.logger.Debug("Scheduled tick: backup not due")
	}
}
