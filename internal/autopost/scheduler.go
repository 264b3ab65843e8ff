package autopost

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule fires before the Asian open and after the Taiwan close.
const DefaultSchedule = "0 8,17 * * *"

// Scheduler triggers runs on a cron schedule in the runner's timezone.
type Scheduler struct {
	runner  *Runner
	cron    *cron.Cron
	timeout time.Duration
	opts    Options
	logger  *zap.Logger
}

func NewScheduler(runner *Runner, timeout time.Duration, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Scheduler{
		runner:  runner,
		cron:    cron.New(cron.WithLocation(runner.clock.Location), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		opts:    opts,
		logger:  logger,
	}
}

// ValidateSchedule parses a five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// Start registers the schedule and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	_, err := s.cron.AddFunc(schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Autopost scheduler started",
		zap.String("schedule", schedule),
		zap.String("timezone", s.runner.clock.Location.String()))
	return nil
}

// Stop halts the loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Autopost scheduler stopped")
}

// Next is the next fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.runner.Run(ctx, s.opts)
	if err != nil {
		s.logger.Error("Scheduled autopost failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	s.logger.Info("Scheduled autopost completed",
		zap.String("session", string(result.Session)),
		zap.String("topic", result.Topic),
		zap.Bool("dispatched", result.Dispatch.OK()),
		zap.Duration("duration", time.Since(start)))
}
