package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the runtime's periodic update pass at a fixed rate.
// It runs in a single goroutine, so two ticks never execute
// concurrently; when a tick overruns the interval the intervening
// ticker beats are dropped rather than queued.
type Scheduler struct {
	rt   *Runtime
	rate time.Duration
	log  *zap.Logger
}

func NewScheduler(rt *Runtime, rate time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{rt: rt, rate: rate, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.rate)
	defer ticker.Stop()
	s.log.Info("scheduler started", zap.Duration("tick", s.rate))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped", zap.Uint64("ticks", s.rt.ticks.Load()))
			return nil
		case <-ticker.C:
			s.rt.Tick(s.rate)
		}
	}
}
