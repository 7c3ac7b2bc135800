package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives periodic syncs and health checks.
type Scheduler struct {
	orch          *Orchestrator
	interval      time.Duration
	checkInterval time.Duration
	logger        *zap.Logger
}

func NewScheduler(orch *Orchestrator, interval, checkInterval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if checkInterval <= 0 {
		checkInterval = 2 * time.Hour
	}
	return &Scheduler{orch: orch, interval: interval, checkInterval: checkInterval, logger: logger}
}

// Run syncs once on startup, then whenever the sync timer fires. A
// successful sync, scheduled or not, re-arms the timer through the
// orchestrator. Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting sync scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("check_interval", s.checkInterval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	check := time.NewTicker(s.checkInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := s.orch.Sync(ctx); err != nil {
				// no rearm follows a failed or skipped run
				if errors.Is(err, ErrSyncInProgress) {
					s.logger.Debug("Scheduled sync skipped, run already active")
				}
				timer.Reset(s.interval)
			}
		case next := <-s.orch.Rearm():
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			s.logger.Debug("Next sync scheduled", zap.Time("next_run", next), zap.Duration("wait_duration", wait))
		case <-check.C:
			insights, res := s.orch.Check(ctx)
			s.logger.Info("Health check completed",
				zap.Int("insights", len(insights)),
				zap.Strings("notified", res.Scheduled),
			)
		}
	}
}
