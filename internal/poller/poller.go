// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fabtrak/trace-exporter/internal/exporter"
)

// CycleRunner is the unit the Runner drives once per tick.
type CycleRunner interface {
	Run(ctx context.Context) (*exporter.Snapshot, error)
}

// Runner repeats a cycle on a fixed interval until the context is
// cancelled. Per-cycle errors are logged and swallowed; the interval itself
// is the retry delay.
type Runner struct {
	interval time.Duration
	cycle    CycleRunner
	logger   *zap.Logger
}

// NewRunner returns a runner ticking at the given interval.
func NewRunner(interval time.Duration, cycle CycleRunner, logger *zap.Logger) *Runner {
	return &Runner{
		interval: interval,
		cycle:    cycle,
		logger:   logger,
	}
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately; subsequent cycles follow the ticker. Returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce drives a single cycle, containing its failure.
func (r *Runner) runOnce(ctx context.Context) {
	r.logger.Debug("Cycle start")
	if _, err := r.cycle.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("Cycle failed", zap.Error(err))
	}
}
