// Package worker runs one Consumer per agent kind and coordinates their
// lifecycle as a group.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/timour/catalyst/pkg/eventbus"
)

// Agent pairs an event type with the handler that processes it.
type Agent struct {
	Kind    eventbus.EventType
	Handler eventbus.Handler
}

// Worker owns the Consumer for a single agent kind.
type Worker struct {
	agent    Agent
	consumer *eventbus.Consumer
	logger   *slog.Logger
}

// NewWorker builds a Worker bound to the given consumer.
func NewWorker(agent Agent, consumer *eventbus.Consumer, logger *slog.Logger) *Worker {
	return &Worker{agent: agent, consumer: consumer, logger: logger}
}

// Run blocks, listening for events until ctx is cancelled. A panic anywhere
// in the consume loop — not just inside a handler, which Consumer already
// recovers around — is caught here so one bad delivery cannot take the
// whole worker goroutine down silently.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panicked, treating as fatal",
				slog.String("kind", string(w.agent.Kind)),
				slog.Any("panic", r),
			)
		}
	}()
	w.logger.Info("worker starting", slog.String("kind", string(w.agent.Kind)))
	w.consumer.Listen(ctx)
	w.logger.Info("worker stopped", slog.String("kind", string(w.agent.Kind)))
}
