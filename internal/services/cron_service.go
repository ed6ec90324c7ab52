package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AtRiskSweeper is the job the scheduler drives. Implemented by
// DispatcherService.
type AtRiskSweeper interface {
	SweepAtRisk(ctx context.Context) (*SweepResult, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	sweeper  AtRiskSweeper
	schedule string
	timeout  time.Duration
	logger   *logrus.Logger

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastSweep *SweepResult
}

// NewCronService creates a new CronService. schedule uses the six-field
// format with seconds, e.g. "0 * * * * *" for every minute.
func NewCronService(sweeper AtRiskSweeper, schedule string, timeout time.Duration, logger *logrus.Logger) *CronService {
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.schedule, s.sweepJob); err != nil {
		return fmt.Errorf("failed to schedule at-risk sweep job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: at-risk shift sweep")

	s.cron.Start()
	s.logger.Info("Cron service started successfully")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// sweepJob polls accepted shifts for late guards. Overlapping runs are
// skipped rather than queued.
func (s *CronService) sweepJob() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("[CRON] Previous at-risk sweep still running; skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.runSweep(ctx, "[CRON]")
}

func (s *CronService) runSweep(ctx context.Context, prefix string) (*SweepResult, error) {
	startTime := time.Now()

	result, err := s.sweeper.SweepAtRisk(ctx)
	if err != nil {
		s.logger.WithError(err).Errorf("%s At-risk sweep failed", prefix)
		return result, err
	}

	s.mu.Lock()
	s.lastRun = startTime
	s.lastSweep = result
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"checked":   result.Checked,
		"welfare":   result.Welfare,
		"escalated": result.Escalated,
		"errors":    result.Errors,
		"duration":  time.Since(startTime).String(),
	}).Infof("%s At-risk sweep complete", prefix)
	return result, nil
}

// RunSweepNow runs the at-risk sweep immediately
func (s *CronService) RunSweepNow(ctx context.Context) (*SweepResult, error) {
	s.logger.Info("[MANUAL] Running at-risk sweep now...")
	return s.runSweep(ctx, "[MANUAL]")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
		"schedule":  s.schedule,
	}
	if !s.lastRun.IsZero() {
		status["last_sweep_at"] = s.lastRun
		status["last_sweep"] = s.lastSweep
	}
	return status
}
