package workflow

import (
	"context"

	"abstractor/internal/logging"
	"abstractor/internal/metrics"
	"abstractor/internal/queue"
	"abstractor/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastSearch  *queue.Search
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastSearch := m.lastSearch
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("failed to read queue stats", logging.Error(err))
		}
	} else {
		counts := make(map[string]int, len(stats))
		for status, count := range stats {
			counts[string(status)] = count
		}
		metrics.ObserveStatuses(counts)
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastSearch != nil {
		copied := *lastSearch
		summary.LastSearch = &copied
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastSearch(search *queue.Search) {
	m.mu.Lock()
	if search != nil {
		copied := *search
		m.lastSearch = &copied
	} else {
		m.lastSearch = nil
	}
	m.mu.Unlock()
}
