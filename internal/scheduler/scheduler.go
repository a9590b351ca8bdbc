// Package scheduler runs backtests on a cron schedule over a trailing window.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/config"
	"github.com/yourusername/fund-backtester/internal/models"
)

// Job runs one backtest over [start, end]
type Job func(ctx context.Context, start, end time.Time) error

// Scheduler manages scheduled backtest jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
	jobTimeout      time.Duration
	now             func() time.Time

	// ctx is the parent of every job context and is cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler whose jobs run under ctx. Specs use
// the six-field format with seconds.
func NewScheduler(ctx context.Context, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
		jobTimeout:      time.Hour,
		now:             time.Now,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Window returns the lookback window ending on the day of now
func Window(now time.Time, lookback string) (time.Time, time.Time, error) {
	years, months, days, err := config.ParseLookback(lookback)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := models.TruncateDate(now)
	return end.AddDate(-years, -months, -days), end, nil
}

// ScheduleBacktest adds a job that runs on spec over the lookback window
// ending today
func (s *Scheduler) ScheduleBacktest(spec, lookback string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, _, _, err := config.ParseLookback(lookback); err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(spec, func() { s.run(lookback, job) })
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"cron":     spec,
		"lookback": lookback,
	}).Info("Scheduled backtest job")

	return nil
}

func (s *Scheduler) run(lookback string, job Job) {
	start, end, err := Window(s.now(), lookback)
	if err != nil {
		s.logger.WithError(err).Error("Invalid lookback for scheduled backtest")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	fields := logrus.Fields{
		"start": start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}
	s.logger.WithFields(fields).Info("Starting scheduled backtest")

	began := time.Now()
	if err := job(ctx, start, end); err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Scheduled backtest failed")
		return
	}
	s.logger.WithFields(fields).WithField("duration", time.Since(began).String()).Info("Scheduled backtest completed")
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and cancels running jobs, waiting up to the
// graceful timeout for them to return. A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler did not stop within %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the next activation time of the earliest job, or the zero
// time when the scheduler is not running
func (s *Scheduler) NextRun() time.Time {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if next.IsZero() || (!entry.Next.IsZero() && entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}
