package cleanup

import (
	"context"
	"time"

	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	"github.com/AlibekovAA/session-auth/internal/common/constants"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
	"github.com/AlibekovAA/session-auth/internal/observability/metrics"
)

// StartSlotCleanup empties expired session slots every interval until ctx
// is cancelled. It blocks; run it in its own goroutine.
func StartSlotCleanup(ctx context.Context, sweeper authrepo.ExpiredSlotSweeper, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = constants.DefaultSlotCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, sweeper, log)
		}
	}
}

func sweep(ctx context.Context, sweeper authrepo.ExpiredSlotSweeper, log *logger.Logger) {
	deleted, err := sweeper.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithFields(ctx, logger.Fields{
			"action": "slot_cleanup_failed",
		}).Errorf("session slot cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		metrics.SessionSlotsCleanupDeleted.Add(float64(deleted))
		log.WithFields(ctx, logger.Fields{
			"deleted": deleted,
			"action":  "slot_cleanup",
		}).Infof("session slot cleanup: cleared %d expired slots", deleted)
	}
}
