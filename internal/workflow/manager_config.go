package workflow

import "unspool/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Stage order follows the item lifecycle; a nil handler skips its stage so
// tests can run a partial pipeline.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage

	if set.Identifier != nil {
		stages = append(stages, pipelineStage{
			name:             "identifier",
			handler:          set.Identifier,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusIdentifying,
			doneStatus:       queue.StatusIdentified,
		})
	}
	if set.Unlocker != nil {
		stages = append(stages, pipelineStage{
			name:             "unlocker",
			handler:          set.Unlocker,
			startStatus:      queue.StatusIdentified,
			processingStatus: queue.StatusUnlocking,
			doneStatus:       queue.StatusUnlocked,
		})
	}
	if set.Ingestor != nil {
		stages = append(stages, pipelineStage{
			name:             "ingestor",
			handler:          set.Ingestor,
			startStatus:      queue.StatusUnlocked,
			processingStatus: queue.StatusIngesting,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	var processing []queue.Status
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.processingStatuses = processing
	m.mu.Unlock()
}
