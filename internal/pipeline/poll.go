package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// DefaultPollInterval is the fixed interval between batch polls.
const DefaultPollInterval = 2 * time.Second

// PollOption configures WaitForBatch.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval     time.Duration
	deleteOnDone bool
	onProgress   func(*model.Batch)
}

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDeleteOnDone deletes the batch record once a terminal status has been
// read.
func WithDeleteOnDone(del bool) PollOption {
	return func(c *pollConfig) { c.deleteOnDone = del }
}

// WithOnProgress registers a callback invoked with every polled record.
func WithOnProgress(fn func(*model.Batch)) PollOption {
	return func(c *pollConfig) { c.onProgress = fn }
}

// WaitForBatch polls the batch until it is completed or failed, or ctx is
// done. A failed batch is returned without error; callers read ErrorMessage.
func WaitForBatch(ctx context.Context, st store.BatchStore, id string, opts ...PollOption) (*model.Batch, error) {
	cfg := pollConfig{interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		b, err := st.GetBatch(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: poll batch %s", id)
		}
		if b == nil {
			return nil, eris.Wrapf(ErrBatchNotFound, "pipeline: poll batch %s", id)
		}
		if cfg.onProgress != nil {
			cfg.onProgress(b)
		}

		if b.Status.IsTerminal() {
			if cfg.deleteOnDone {
				if err := st.DeleteBatch(ctx, id); err != nil {
					zap.L().Warn("pipeline: delete consumed batch", zap.String("batch_id", id), zap.Error(err))
				}
			}
			return b, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "pipeline: poll batch %s", id)
		case <-ticker.C:
		}
	}
}
