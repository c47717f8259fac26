package workers

import (
	"fmt"
	"log/slog"
)

// Manager manages multiple workers
type Manager struct {
	workers []Worker
	started []Worker
	logger  *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(logger *slog.Logger, workers ...Worker) *Manager {
	return &Manager{
		workers: workers,
		logger:  logger,
	}
}

// Start starts all workers. If one fails, the ones already running are
// stopped again.
func (m *Manager) Start() error {
	m.logger.Info("Starting worker manager", "worker_count", len(m.workers))

	for _, worker := range m.workers {
		if err := worker.Start(); err != nil {
			m.Stop()
			return fmt.Errorf("failed to start worker %s: %w", worker.Name(), err)
		}
		m.started = append(m.started, worker)
		m.logger.Info("Worker started", "name", worker.Name())
	}

	return nil
}

// Stop stops started workers in reverse order.
func (m *Manager) Stop() {
	for i := len(m.started) - 1; i >= 0; i-- {
		m.logger.Info("Stopping worker", "name", m.started[i].Name())
		m.started[i].Stop()
	}
	m.started = nil

	m.logger.Info("All workers stopped")
}
