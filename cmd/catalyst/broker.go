package main

import (
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/config"
	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/handlers"
	"github.com/timour/catalyst/pkg/metrics"
	"github.com/timour/catalyst/pkg/worker"
)

// connectBroker dials RabbitMQ, bootstraps the topology, and builds the
// Publisher — only done in event-driven mode.
func (a *App) connectBroker(busMetrics *metrics.BusMetrics) error {
	conn, ch, err := eventbus.Connect(a.cfg.BrokerURL, a.logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	if err := eventbus.InitTopology(ch); err != nil {
		return fmt.Errorf("init topology: %w", err)
	}

	publisher := eventbus.NewPublisher(conn, ch, a.cfg.BrokerURL, a.logger, busMetrics, a.pgStore)

	a.brokerConn = &eventBusConn{
		ch:        ch,
		publisher: publisher,
		close: func() error {
			if err := ch.Close(); err != nil {
				return err
			}
			return conn.Close()
		},
	}
	return nil
}

// buildWorkerManager opens one consumer per agent kind, all sharing the
// handler functions that sequential mode also drives.
func buildWorkerManager(bus *eventBusConn, cfg *config.Config, deps *handlers.Deps, busMetrics *metrics.BusMetrics, logger *slog.Logger) *worker.Manager {
	kinds := []struct {
		kind    eventbus.EventType
		handler eventbus.Handler
	}{
		{eventbus.EventTaskInitiated, deps.Plan},
		{eventbus.EventPlanCreated, deps.Architect},
		{eventbus.EventArchitectureProposed, deps.Code},
		{eventbus.EventCodePROpened, deps.Test},
		{eventbus.EventTestResults, deps.Review},
		{eventbus.EventReviewDecision, deps.Deploy},
		{eventbus.EventExplorerScanRequest, deps.Explore},
	}

	workers := make([]*worker.Worker, 0, len(kinds))
	for _, k := range kinds {
		consumer := eventbus.NewConsumer(k.kind, bus.ch, cfg.BrokerURL, logger, busMetrics, k.handler)
		workers = append(workers, worker.NewWorker(worker.Agent{Kind: k.kind, Handler: k.handler}, consumer, logger))
	}

	return worker.NewManager(workers, logger)
}
