package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeps calls SweepAndAutoComplete immediately and then every interval
// until ctx is cancelled. Failed sweeps are logged and retried on the next
// tick.
func (e *Engine) RunSweeps(ctx context.Context, interval time.Duration, onReport func(SweepReport)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := e.SweepAndAutoComplete(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			e.logger.Error("sweep failed", zap.Error(err))
		default:
			e.logger.Info("sweep finished",
				zap.Int("analyzed", report.Analyzed),
				zap.Int("promoted", len(report.Promoted)),
				zap.Int("skipped", report.Skipped),
				zap.Int("failed", report.Failed),
			)
			if onReport != nil {
				onReport(report)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
