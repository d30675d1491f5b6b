package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Review weighs the test report and an LLM verdict and always publishes a
// single review.decision event carrying the outcome. Rejection is terminal:
// catalyst does not loop a rejected task back to the coder stage, it stops
// and leaves the task in StatusRejected for a human to pick up; the
// deployer still receives the decision but no-ops on a rejection.
func (d *Deps) Review(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	task, err := d.Store.GetTask(ctx, ev.TaskID)
	if err != nil {
		return eventbus.Fatal(fmt.Errorf("load task %s: %w", ev.TaskID, err))
	}

	failed := payloadNumber(ev.Payload, "failed")
	exitCode := payloadNumber(ev.Payload, "exit_code")
	if failed > 0 || exitCode != 0 {
		review := map[string]interface{}{
			"verdict":  "REJECT test suite failed",
			"approved": false,
		}
		if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, store.StatusRejected, "review", review); err != nil {
			return eventbus.Retry(fmt.Errorf("persist rejection: %w", err))
		}
		if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "reviewer", eventbus.EventReviewDecision, review); err != nil {
			return eventbus.Retry(fmt.Errorf("publish review.decision: %w", err))
		}
		d.Logger.Info("review rejected on failing tests", slog.String("task_id", ev.TaskID))
		return eventbus.OK()
	}

	verdict, err := d.LLM.Generate(ctx, fmt.Sprintf(
		"Review this change for task %q. Respond with APPROVE or REJECT followed by a reason.\n\n%s",
		task.Description, string(task.CodeDiff),
	))
	if err != nil {
		return eventbus.Retry(fmt.Errorf("generate review: %w", err))
	}

	approved := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(verdict)), "APPROVE")
	review := map[string]interface{}{"verdict": verdict, "approved": approved}

	status := store.StatusDeploying
	if !approved {
		status = store.StatusRejected
	}
	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, status, "review", review); err != nil {
		return eventbus.Retry(fmt.Errorf("persist review: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "reviewer", eventbus.EventReviewDecision, review); err != nil {
		return eventbus.Retry(fmt.Errorf("publish review.decision: %w", err))
	}

	d.Logger.Info("review decided", slog.String("task_id", ev.TaskID), slog.Bool("approved", approved))
	return eventbus.OK()
}
