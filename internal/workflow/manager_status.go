package workflow

import (
	"context"

	"unspool/internal/logging"
	"unspool/internal/queue"
	"unspool/internal/stage"
)

// StatusSummary is the manager's answer to status queries: whether the
// poll loop runs, the last failure, the most recent item touched, queue
// counts by status, and per-stage health.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *queue.Item
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status collects current workflow diagnostics. Stage health checks run
// outside the manager lock since they may touch the filesystem.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		item := *m.lastItem
		summary.LastItem = &item
	}
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats

	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler != nil {
			summary.StageHealth[stg.name] = stg.handler.HealthCheck(ctx)
		}
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item == nil {
		m.lastItem = nil
	} else {
		copied := *item
		m.lastItem = &copied
	}
	m.mu.Unlock()
}
