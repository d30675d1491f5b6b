package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/store"
)

// Test materializes the code diff into a sandbox workspace, runs the test
// suite, records the report, and always hands the result to the reviewer —
// a failing suite is a real outcome the reviewer weighs, not a transient
// error, so the sandbox result never triggers a retry on its own.
func (d *Deps) Test(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	diff, _ := ev.Payload["diff"].(string)
	workspace := map[string]string{"change.diff": diff}

	summary, err := d.Sandbox.RunPythonTests(ctx, workspace, nil, nil, nil)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("run sandboxed tests: %w", err))
	}

	report := map[string]interface{}{
		"passed":    summary.Passed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"exit_code": summary.ExitCode,
	}

	if err := d.Store.UpdateTaskStatus(ctx, ev.TaskID, store.StatusReviewing, "test_report", report); err != nil {
		return eventbus.Retry(fmt.Errorf("persist test report: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "tester", eventbus.EventTestResults, report); err != nil {
		return eventbus.Retry(fmt.Errorf("publish test.results: %w", err))
	}

	d.Logger.Info("test run complete", slog.String("task_id", ev.TaskID), slog.Int("failed", summary.Failed))
	return eventbus.OK()
}
