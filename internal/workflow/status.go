package workflow

import (
	"context"

	"reelqueue/internal/logging"
	"reelqueue/internal/queue"
	"reelqueue/internal/scheduler"
	"reelqueue/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	Jobs        []scheduler.JobStatus
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	lastErr := m.lastErr
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.runners))
	for _, runner := range m.runners {
		health[runner.Name()] = runner.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     m.scheduler.Running(),
		Jobs:        m.scheduler.Status(),
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
