package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/store"
)

// Checker periodically logs a snapshot and fails stale batches, so pollers of
// a batch whose run died stop waiting.
type Checker struct {
	collector *Collector
	store     store.BatchStore
	interval  time.Duration
	lookback  time.Duration
	sweep     bool
}

// NewChecker creates a Checker. With sweep set, stale batches are marked
// failed.
func NewChecker(collector *Collector, st store.BatchStore, interval, lookback time.Duration, sweep bool) *Checker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		store:     st,
		interval:  interval,
		lookback:  lookback,
		sweep:     sweep,
	}
}

// Run starts the check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting batch checker",
		zap.Duration("interval", c.interval),
		zap.Duration("lookback", c.lookback),
		zap.Bool("sweep", c.sweep),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("batch checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check runs one collection and, when enabled, fails the stale batches it
// found. It returns the number of batches failed.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: collect", zap.Error(err))
		return 0
	}

	log.Info("monitoring: batch snapshot",
		zap.Int("total", snap.Total),
		zap.Int("pending", snap.Pending),
		zap.Int("processing", snap.Processing),
		zap.Int("completed", snap.Completed),
		zap.Int("failed", snap.Failed),
		zap.Float64("fail_rate", snap.FailRate),
		zap.Int("stale", len(snap.Stale)),
	)

	if !c.sweep || len(snap.Stale) == 0 {
		return 0
	}

	msg := fmt.Sprintf("batch made no progress for %s", c.collector.staleAfter)
	swept := 0
	for _, id := range snap.Stale {
		if err := pipeline.NewTracker(c.store, id).Fail(ctx, msg); err != nil {
			log.Warn("monitoring: fail stale batch", zap.String("batch_id", id), zap.Error(err))
			continue
		}
		swept++
	}
	log.Warn("monitoring: stale batches failed", zap.Int("count", swept))
	return swept
}
