package hub

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes persisted quotes older than a cutoff. Satisfied by
// *postgres.PostgresClient.
type Pruner interface {
	DeleteOldQuotes(ctx context.Context, before time.Time) error
}

// RunRetention sweeps quote history on a fixed interval, deleting rows
// older than keep. Blocks until ctx is canceled. A failed sweep is logged
// and retried on the next interval.
func RunRetention(ctx context.Context, p Pruner, every, keep time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("history retention started",
		zap.Duration("every", every), zap.Duration("keep", keep))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-keep)
			if err := p.DeleteOldQuotes(ctx, cutoff); err != nil {
				logger.Warn("history retention sweep failed", zap.Error(err))
				continue
			}
			logger.Debug("history retention sweep done", zap.Time("cutoff", cutoff))
		}
	}
}
