// Package scheduler drives periodic price update cycles.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work. A returned error is logged and the
// timer stays armed.
type Job func(ctx context.Context) error

// Status is a point-in-time view of the scheduler. NextUpdate is an estimate.
type Status struct {
	IsRunning  bool
	Interval   time.Duration
	NextUpdate *time.Time
	LastRunAt  *time.Time
	LastError  string
}

// UpdateScheduler runs a Job on a fixed interval. Runs never overlap and the
// first one starts as soon as the scheduler is initialized.
type UpdateScheduler struct {
	interval time.Duration
	job      Job
	logger   *zap.Logger

	mu        sync.Mutex
	cron      *gocron.Scheduler
	entry     *gocron.Job
	cancel    context.CancelFunc
	lastRunAt *time.Time
	lastError string
}

func New(interval time.Duration, job Job, logger *zap.Logger) *UpdateScheduler {
	return &UpdateScheduler{
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Initialize starts the timer. Calling it again while running is a no-op.
func (s *UpdateScheduler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.logger.Warn("scheduler already initialized")
		return nil
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cron := gocron.NewScheduler(time.UTC)
	entry, err := cron.Every(s.interval).SingletonMode().Do(func() { s.run(jobCtx) })
	if err != nil {
		cancel()
		return err
	}
	cron.StartAsync()

	s.cron = cron
	s.entry = entry
	s.cancel = cancel
	s.logger.Info("price update scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the timer and cancels a cycle in flight.
func (s *UpdateScheduler) Stop() {
	s.mu.Lock()
	cron, cancel := s.cron, s.cancel
	s.cron, s.entry, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if cron == nil {
		return
	}
	cancel()
	cron.Stop()
	s.logger.Info("price update scheduler stopped")
}

func (s *UpdateScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		IsRunning: s.cron != nil && s.cron.IsRunning(),
		Interval:  s.interval,
		LastError: s.lastError,
	}
	if s.lastRunAt != nil {
		last := *s.lastRunAt
		status.LastRunAt = &last
	}
	if s.entry != nil {
		if next := s.entry.NextRun(); !next.IsZero() {
			next = next.UTC()
			status.NextUpdate = &next
		}
	}
	return status
}

func (s *UpdateScheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now().UTC()
	err := s.job(ctx)

	s.mu.Lock()
	s.lastRunAt = &started
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled price update failed", zap.Error(err))
	}
}
