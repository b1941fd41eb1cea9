package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/monitoring"
)

// Runner runs one refresh cycle.
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler triggers a cycle at start and then every interval. A tick that
// lands while a cycle is running is skipped.
type Scheduler struct {
	runner   Runner
	clock    clockwork.Clock
	interval time.Duration
	metrics  *monitoring.Metrics

	wg sync.WaitGroup
}

// NewScheduler creates a Scheduler. clock and metrics may be nil.
func NewScheduler(r Runner, clock clockwork.Clock, interval time.Duration, metrics *monitoring.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{runner: r, clock: clock, interval: interval, metrics: metrics}
}

// Start blocks until ctx is done, then waits for any running cycle.
func (s *Scheduler) Start(ctx context.Context) {
	log := zap.L().With(zap.String("component", "refresh.scheduler"))
	log.Info("scheduler started", zap.Duration("interval", s.interval))

	s.trigger(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Info("scheduler stopped")
			return
		case <-ticker.Chan():
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.runner.Run(ctx)
		switch {
		case errors.Is(err, ErrRefreshInProgress):
			zap.L().Info("refresh: tick skipped, cycle in progress")
			if s.metrics != nil {
				s.metrics.RefreshRuns.WithLabelValues("skipped").Inc()
			}
		case err != nil:
			zap.L().Warn("refresh: scheduled cycle failed", zap.Error(err))
		}
	}()
}
