package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Plan turns a task's description into a step-by-step plan via the LLM
// client, records it, and requests the architect stage.
func (d *Deps) Plan(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	task, err := d.Store.GetTask(ctx, ev.TaskID)
	if err != nil {
		return eventbus.Fatal(fmt.Errorf("load task %s: %w", ev.TaskID, err))
	}

	planText, err := d.LLM.Generate(ctx, "Produce a step-by-step implementation plan for: "+task.Description)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("generate plan: %w", err))
	}

	plan := map[string]interface{}{"plan": planText}
	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, store.StatusArchitect, "plan", plan); err != nil {
		return eventbus.Retry(fmt.Errorf("persist plan: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "planner", eventbus.EventPlanCreated, plan); err != nil {
		return eventbus.Retry(fmt.Errorf("publish plan.created: %w", err))
	}

	d.Logger.Info("plan complete", slog.String("task_id", ev.TaskID))
	return eventbus.OK()
}
