package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Deploy consumes a review.decision. A rejection is a no-op here: the
// reviewer already left the task in StatusRejected, there is nothing to
// deploy. An approval runs the deploy command inside a sandbox container
// and marks the task done or failed — the terminal stage of the critical
// path.
func (d *Deps) Deploy(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	approved, _ := ev.Payload["approved"].(bool)
	if !approved {
		d.Logger.Info("deploy skipped, review was rejected", slog.String("task_id", ev.TaskID))
		return eventbus.OK()
	}

	task, err := d.Store.GetTask(ctx, ev.TaskID)
	if err != nil {
		return eventbus.Fatal(fmt.Errorf("load task %s: %w", ev.TaskID, err))
	}

	workspace := map[string]string{"change.diff": string(task.CodeDiff)}
	outcome, err := d.Sandbox.RunCommand(ctx, workspace, []string{"./deploy.sh"}, 0, nil, nil)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("run deploy: %w", err))
	}

	report := map[string]interface{}{
		"exit_code": outcome.ExitCode,
		"stdout":    outcome.Stdout,
		"stderr":    outcome.Stderr,
		"duration":  outcome.Duration.String(),
	}

	status := store.StatusDone
	eventType := eventbus.EventDeployComplete
	if outcome.ExitCode != 0 {
		status = store.StatusFailed
		eventType = eventbus.EventDeployFailed
	}

	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, status, "deploy_report", report); err != nil {
		return eventbus.Retry(fmt.Errorf("persist deploy report: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "deployer", eventType, report); err != nil {
		return eventbus.Retry(fmt.Errorf("publish %s: %w", eventType, err))
	}

	d.Logger.Info("deploy finished", slog.String("task_id", ev.TaskID), slog.String("status", status))
	return eventbus.OK()
}
