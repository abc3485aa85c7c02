package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"unspool/internal/logging"
	"unspool/internal/queue"
)

// HeartbeatMonitor keeps in-flight queue items visibly alive and
// reclaims items whose worker stopped beating.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStaleItems rewinds items whose last heartbeat predates the
// timeout window. A non-positive timeout disables reclamation.
func (h *HeartbeatMonitor) ReclaimStaleItems(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout))
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale items", logging.Int64("count", reclaimed))
	}
	return nil
}

// StartLoop beats on behalf of one item until ctx is cancelled. Runs
// as a goroutine alongside the item's stage handler.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID int64) {
	defer wg.Done()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := h.store.UpdateHeartbeat(ctx, itemID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Info("daemon shutting down, heartbeat update cancelled")
		default:
			logger.Warn("heartbeat update failed", logging.Error(err))
		}
	}
}
