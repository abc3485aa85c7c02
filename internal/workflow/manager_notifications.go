package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unspool/internal/logging"
	"unspool/internal/notifications"
	"unspool/internal/queue"
)

// publish sends one notification. Delivery failures never disturb the
// workflow; they are logged and dropped.
func (m *Manager) publish(ctx context.Context, what string, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	err := m.notifier.Publish(ctx, event, payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("daemon shutting down, could not send " + what + " notification")
		return
	}
	logging.WarnWithContext(m.logger, what+" notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notification service configuration"),
		logging.String(logging.FieldImpact, what+" notification was not delivered"),
	)
}

// queueStats fetches queue counts for notification decisions, logging
// and returning false when they are unavailable.
func (m *Manager) queueStats(ctx context.Context, purpose string) (map[queue.Status]int, bool) {
	stats, err := m.store.Stats(ctx)
	if err == nil {
		return stats, true
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("daemon shutting down, could not get queue stats for " + purpose)
		return nil, false
	}
	logging.WarnWithContext(m.logger, "queue stats unavailable for "+purpose, "queue_stats_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, purpose+" will not be sent"),
	)
	return nil, false
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if stageErr == nil {
		return
	}
	m.publish(ctx, "stage error", notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": fmt.Sprintf("%s (item #%d)", stageName, item.ID),
	})
}

func (m *Manager) notifyReview(ctx context.Context, item *queue.Item) {
	m.publish(ctx, "review", notifications.EventReview, notifications.Payload{
		"track":  item.DisplayTitle(),
		"reason": item.ReviewReason,
	})
}

// onItemStarted marks the queue busy and announces the first pickup of
// a fresh batch. Later pickups in the same busy period stay quiet.
func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, ok := m.queueStats(ctx, "start notification")
	if !ok {
		return
	}

	m.mu.Lock()
	alreadyActive := m.queueActive
	if !alreadyActive {
		m.queueActive = true
		m.queueStart = time.Now()
	}
	m.mu.Unlock()
	if alreadyActive {
		return
	}

	m.publish(ctx, "queue start", notifications.EventQueueStarted, notifications.Payload{
		"count": countActiveItems(stats),
	})
}

// checkQueueCompletion announces the end of a busy period once no
// non-terminal items remain.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, ok := m.queueStats(ctx, "completion notification")
	if !ok || countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	wasActive := m.queueActive
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()
	if !wasActive {
		return
	}

	var duration time.Duration
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.publish(ctx, "queue completion", notifications.EventQueueCompleted, notifications.Payload{
		"processed": stats[queue.StatusCompleted],
		"failed":    stats[queue.StatusFailed],
		"duration":  duration,
	})
}

func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if !queue.IsTerminal(status) {
			total += count
		}
	}
	return total
}
