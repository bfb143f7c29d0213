package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// batchRunner is what the scheduler drives each tick. *Pipeline satisfies it.
type batchRunner interface {
	RunBatch(ctx context.Context) (BatchResult, error)
}

// Scheduler drives the pipeline on a fixed interval, independent of request
// traffic. A failing tick is logged and the interval continues; nothing a
// batch does can stop future ticks.
type Scheduler struct {
	pipeline batchRunner
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(pipeline batchRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the polling loop until ctx is done. The first pass fires
// immediately; subsequent passes follow the ticker.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler shutting down")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.pipeline.RunBatch(ctx); err != nil {
		s.logger.Error("batch pass failed", zap.Error(err))
	}
}
