package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"unspool/internal/logging"
	"unspool/internal/queue"
)

// Start launches the background processing loop. It fails if the
// manager is already running or no stages are registered.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.running:
		return errors.New("workflow already running")
	case len(m.statusOrder) == 0:
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop cancels the processing loop and blocks until it has exited.
// Safe to call when not running.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	wasRunning := m.running
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if !wasRunning {
		return
	}
	cancel()
	m.wg.Wait()
}

// run is the worker loop: reclaim stale items, pick the next queue
// item, dispatch it to its stage, sleep when the queue is drained.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	logger := m.runnerLogger()

	for ctx.Err() == nil {
		if err := m.heartbeat.ReclaimStaleItems(ctx, logger); err != nil {
			logging.WarnWithContext(logger, "reclaim stale processing failed; stuck items may remain",
				"heartbeat_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		item, err := m.nextItem(ctx)
		switch {
		case err != nil:
			m.handleNextItemError(ctx, logger, err)
		case item == nil:
			m.sleep(ctx, m.pollInterval)
		default:
			if err := m.processItem(ctx, logger, item); errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) nextItem(ctx context.Context) (*queue.Item, error) {
	m.mu.RLock()
	order := m.statusOrder
	m.mu.RUnlock()
	if len(order) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, order...)
}

func (m *Manager) handleNextItemError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to fetch next queue item", "queue_fetch_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.sleep(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
}

// sleep waits for the interval or for shutdown, whichever comes first.
func (m *Manager) sleep(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
