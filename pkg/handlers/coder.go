package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Code generates a diff implementing the architecture and requests the
// test stage.
func (d *Deps) Code(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	architecture, _ := ev.Payload["architecture"].(string)
	diff, err := d.LLM.Generate(ctx, "Write the code diff implementing this architecture: "+architecture)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("generate code: %w", err))
	}

	codeDiff := map[string]interface{}{"diff": diff}
	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, store.StatusTesting, "code_diff", codeDiff); err != nil {
		return eventbus.Retry(fmt.Errorf("persist code diff: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "coder", eventbus.EventCodePROpened, codeDiff); err != nil {
		return eventbus.Retry(fmt.Errorf("publish code.pr.opened: %w", err))
	}

	d.Logger.Info("code generation complete", slog.String("task_id", ev.TaskID))
	return eventbus.OK()
}
