package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/store"
)

// openRegistry opens the run registry for a fit. A registry that cannot be
// opened is logged and the fit runs unrecorded.
func openRegistry(ctx context.Context, c config.StoreConfig) store.Store {
	st, err := store.Open(ctx, c)
	if err != nil {
		zap.L().Warn("run registry unavailable, continuing without it",
			zap.String("driver", c.Driver),
			zap.Error(err),
		)
		return nil
	}
	return st
}
