package notice

import (
	"SmartNotice/internal/config"
	"SmartNotice/internal/lock"
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const schedulerLockKey = "smart-notice:scheduler"

// Scheduler periodically publishes scheduled notices that have fallen due.
// Each tick runs under a named lock so only one replica publishes.
type Scheduler struct {
	service  *Service
	locker   lock.Locker
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(service *Service, locker lock.Locker, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{service: service, locker: locker, interval: cfg.SchedulerInterval, logger: logger}
}

// Tick runs one publication pass.
func (s *Scheduler) Tick(ctx context.Context) {
	release, acquired, err := s.locker.TryLock(ctx, schedulerLockKey, s.interval)
	if err != nil {
		s.logger.Error("scheduler lock", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("scheduler tick skipped, lock held elsewhere")
		return
	}
	defer release()

	n, err := s.service.PublishDue(ctx)
	if err != nil {
		s.logger.Error("publishing due notices", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("scheduled notices published", zap.Int("count", n))
	}
}

// Start runs Tick on a ticker for the lifetime of the application.
func (s *Scheduler) Start(lc fx.Lifecycle) {
	ticker := time.NewTicker(s.interval)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info("starting notice scheduler", zap.Duration("interval", s.interval))
			go func() {
				defer close(done)
				for {
					select {
					case <-ticker.C:
						s.Tick(ctx)
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			s.logger.Info("stopping notice scheduler")
			ticker.Stop()
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
