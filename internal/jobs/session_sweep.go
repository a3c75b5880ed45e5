package jobs

import (
	"context"
	"time"

	"semaphore/dashboard/internal/config"
	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/session"
)

// Sweeper is the part of session.Manager the sweep job drives.
type Sweeper interface {
	Sweep(ctx context.Context, idleAfter time.Duration) session.SweepResult
}

func StartSessionSweepJob(ctx context.Context, cfg config.Config, sessions Sweeper, log logger.Logger) {
	if !cfg.SweepJobEnabled {
		return
	}
	if sessions == nil {
		log.Warn("session sweep job disabled: no session manager")
		return
	}
	interval := cfg.SweepJobInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, interval)
				result := sessions.Sweep(tickCtx, cfg.SweepIdleAfter)
				cancel()
				if result.Invalidated > 0 || result.Evicted > 0 {
					log.Info("session sweep job", map[string]interface{}{
						"invalidated": result.Invalidated,
						"evicted":     result.Evicted,
					})
				}
			}
		}
	}()
}
