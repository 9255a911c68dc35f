package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron"
)

// SweepScheduler runs the sweeper on a cron schedule. A tick that fires while
// the previous pass is still running is dropped.
type SweepScheduler struct {
	sweeper  *Sweeper
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	stopped bool
	wg      sync.WaitGroup
}

func NewSweepScheduler(sweeper *Sweeper, schedule string, logger *slog.Logger) *SweepScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &SweepScheduler{sweeper: sweeper, logger: logger, schedule: schedule, cron: cron.New()}
}

// Run starts the schedule and blocks until ctx is done, then waits for an
// in-flight pass to finish.
func (s *SweepScheduler) Run(ctx context.Context) error {
	if err := s.cron.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	<-ctx.Done()
	s.cron.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
	return ctx.Err()
}

func (s *SweepScheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	res, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "default sweep aborted", "error", err)
		return
	}
	if res.Scanned > 0 {
		s.logger.InfoContext(ctx, "default sweep", "scanned", res.Scanned, "defaulted", res.Defaulted, "skipped", res.Skipped, "failed", res.Failed)
	}
}
