package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/lock"
	"price-threshold-alerts/internal/scheduler"
	"price-threshold-alerts/internal/threshold"
)

// Service drives the runner on a schedule.
type Service struct {
	scheduler *scheduler.Scheduler
	runner    *Runner
	groups    []threshold.Group
	alertsOn  bool
	locker    lock.AdvisoryLocker
	lockKey   int64
	logger    zerolog.Logger
}

// New constructs the monitoring service. sched and locker may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, runner *Runner, locker lock.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		runner:    runner,
		groups:    cfg.Groups,
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run validates the groups and then blocks on the scheduler.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if err := s.runner.Validate(s.groups); err != nil {
		return err
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// RunOnce performs a single pass without taking the advisory lock.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	return s.runner.RunOnce(ctx, s.groups, s.alertsOn)
}

// ProcessTick runs one pass for a scheduled tick when this process holds the lock.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug().Time("tick", tick).Str("run_id", report.RunID).Int("breaches", len(report.Breaches())).Msg("tick processed")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
