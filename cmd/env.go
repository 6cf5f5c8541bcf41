package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/store"
)

// initStore opens the configured batch store and applies its schema.
// Callers should defer st.Close().
func initStore(ctx context.Context) (store.BatchStore, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}
