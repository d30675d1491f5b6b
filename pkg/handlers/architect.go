package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Architect turns the plan into a component/module breakdown and requests
// the coder stage.
func (d *Deps) Architect(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	plan, _ := ev.Payload["plan"].(string)
	archText, err := d.LLM.Generate(ctx, "Design the architecture (modules, interfaces, data flow) implementing this plan: "+plan)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("generate architecture: %w", err))
	}

	architecture := map[string]interface{}{"architecture": archText}
	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, store.StatusCoding, "architecture", architecture); err != nil {
		return eventbus.Retry(fmt.Errorf("persist architecture: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "architect", eventbus.EventArchitectureProposed, architecture); err != nil {
		return eventbus.Retry(fmt.Errorf("publish architecture.proposed: %w", err))
	}

	d.Logger.Info("architecture complete", slog.String("task_id", ev.TaskID))
	return eventbus.OK()
}
