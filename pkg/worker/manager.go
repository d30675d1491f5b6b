package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager starts and stops one goroutine per agent worker, giving running
// handlers a grace period to finish before the process exits.
type Manager struct {
	workers []*Worker
	logger  *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a Manager over the given workers.
func NewManager(workers []*Worker, logger *slog.Logger) *Manager {
	return &Manager{workers: workers, logger: logger}
}

// StartAll launches every worker's Run loop in its own goroutine.
func (m *Manager) StartAll(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, w := range m.workers {
		m.wg.Add(1)
		go w.Run(ctx, &m.wg)
	}
	m.logger.Info("worker manager started", slog.Int("worker_count", len(m.workers)))
}

// StopAll signals every worker to stop and waits up to 30 seconds for
// in-flight handlers to drain before returning.
func (m *Manager) StopAll() {
	if m.cancel == nil {
		return
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("worker manager stopped cleanly")
	case <-time.After(30 * time.Second):
		m.logger.Warn("worker manager stop timed out, some handlers may still be running")
	}
}
