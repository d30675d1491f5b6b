// Package orchestrator implements the dual-mode execution of a task: in
// event_driven mode it publishes the first event and lets the worker
// manager's consumers carry the task the rest of the way; in sequential
// mode it runs every stage handler in-process, one after another, using the
// same handler functions as the event-driven workers.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timour/catalyst/pkg/config"
	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/handlers"
	"github.com/timour/catalyst/pkg/store"
)

// Orchestrator starts a task running in whichever deployment mode the
// Environment Detector resolved.
type Orchestrator struct {
	mode     config.Mode
	deps     *handlers.Deps
	loopback *loopbackPublisher // non-nil only in sequential mode
	logger   *slog.Logger
}

// New builds an Orchestrator. In sequential mode, deps is shallow-copied
// with its Publisher replaced by an in-process loopback so the shared
// handler code never has to special-case the mode it's running in.
func New(mode config.Mode, deps *handlers.Deps, logger *slog.Logger) *Orchestrator {
	if mode != config.ModeEventDriven {
		lb := &loopbackPublisher{}
		seqDeps := *deps
		seqDeps.Publisher = lb
		return &Orchestrator{mode: mode, deps: &seqDeps, loopback: lb, logger: logger}
	}
	return &Orchestrator{mode: mode, deps: deps, logger: logger}
}

// pipeline is the fixed task.initiated→deploy stage order sequential mode
// drives.
var pipeline = []eventbus.EventType{
	eventbus.EventTaskInitiated,
	eventbus.EventPlanCreated,
	eventbus.EventArchitectureProposed,
	eventbus.EventCodePROpened,
	eventbus.EventTestResults,
	eventbus.EventReviewDecision,
}

// ExecuteTask creates the task record and starts it: in event-driven mode
// this publishes task.initiated and returns immediately, leaving the
// workers to carry the task forward; in sequential mode it drives
// plan→architect→code→test→review→deploy in-process and returns once the
// pipeline reaches a terminal state; a stage that does not succeed leaves
// the task in StatusFailed and its error is returned.
func (o *Orchestrator) ExecuteTask(ctx context.Context, description string) (*store.Task, error) {
	task := &store.Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      store.StatusPending,
		Mode:        string(o.mode),
		TraceID:     uuid.NewString(),
	}

	if err := o.deps.Store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	first := eventbus.Event{
		EventID:   uuid.NewString(),
		TaskID:    task.ID,
		TraceID:   task.TraceID,
		Actor:     "orchestrator",
		EventType: eventbus.EventTaskInitiated,
		Payload:   map[string]interface{}{"description": task.Description},
		Timestamp: time.Now(),
		Attempt:   1,
	}

	if o.mode == config.ModeEventDriven {
		if err := o.deps.Publisher.Publish(ctx, first); err != nil {
			return nil, fmt.Errorf("publish task.initiated: %w", err)
		}
		return o.deps.Store.GetTask(ctx, task.ID)
	}

	if err := o.runSequential(ctx, first); err != nil {
		if uerr := o.deps.Store.UpdateTaskStatus(ctx, task.ID, store.StatusFailed, "", nil); uerr != nil {
			o.logger.Warn("mark task failed", slog.String("task_id", task.ID), slog.Any("error", uerr))
		}
		return nil, err
	}
	return o.deps.Store.GetTask(ctx, task.ID)
}

var stageHandler = map[eventbus.EventType]func(*handlers.Deps) eventbus.Handler{
	eventbus.EventTaskInitiated:        func(d *handlers.Deps) eventbus.Handler { return d.Plan },
	eventbus.EventPlanCreated:          func(d *handlers.Deps) eventbus.Handler { return d.Architect },
	eventbus.EventArchitectureProposed: func(d *handlers.Deps) eventbus.Handler { return d.Code },
	eventbus.EventCodePROpened:         func(d *handlers.Deps) eventbus.Handler { return d.Test },
	eventbus.EventTestResults:          func(d *handlers.Deps) eventbus.Handler { return d.Review },
	eventbus.EventReviewDecision:       func(d *handlers.Deps) eventbus.Handler { return d.Deploy },
}

// runSequential feeds current through each stage in pipeline order. A
// stage's published event becomes the next stage's input; if a stage's
// event falls outside the critical path pipeline models, the pipeline
// stops there rather than forcing the next stage to run on an unrelated
// event.
func (o *Orchestrator) runSequential(ctx context.Context, current eventbus.Event) error {
	for _, expected := range pipeline {
		if current.EventType != expected {
			o.logger.Info("sequential pipeline stopped short of deploy",
				slog.String("task_id", current.TaskID),
				slog.String("last_event", string(current.EventType)),
			)
			return nil
		}

		handler := stageHandler[expected](o.deps)
		result := handler(ctx, current)
		if result.Kind != eventbus.ResultOK {
			return fmt.Errorf("sequential stage %s failed for task %s: %w", expected, current.TaskID, result.Err)
		}

		next := o.loopback.take()
		if next == nil {
			return nil
		}
		current = *next
	}
	return nil
}
