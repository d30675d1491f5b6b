package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
)

// Explore answers a directory-scanning request with an LLM-generated
// summary of the repository area named in the request. It sits off the
// critical plan→deploy path: no stage waits on explorer.scan.complete, and
// the sequential orchestrator never invokes it.
func (d *Deps) Explore(ctx context.Context, ev eventbus.Event) eventbus.Result {
	if skip, result := d.guard(ctx, ev); skip {
		return result
	}

	target, _ := ev.Payload["path"].(string)
	if target == "" {
		target = "."
	}

	summary, err := d.LLM.Generate(ctx, "Summarize the purpose and key files under: "+target)
	if err != nil {
		return eventbus.Retry(fmt.Errorf("generate scan summary: %w", err))
	}

	if err := d.publishNext(ctx, ev.TaskID, ev.TraceID, "explorer", eventbus.EventExplorerScanComplete, map[string]interface{}{
		"path":    target,
		"summary": summary,
	}); err != nil {
		return eventbus.Retry(fmt.Errorf("publish explorer.scan.complete: %w", err))
	}

	d.Logger.Info("explorer scan complete", slog.String("task_id", ev.TaskID), slog.String("path", target))
	return eventbus.OK()
}
