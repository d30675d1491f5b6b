package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/timour/catalyst/pkg/eventbus"
)

// guard applies the idempotence predicate: if the task has already been
// processed for this event type, work is a no-op success rather than an
// error, so a redelivered message never runs a handler twice.
func (d *Deps) guard(ctx context.Context, ev eventbus.Event) (skip bool, result eventbus.Result) {
	seen, err := d.Seen.Seen(ctx, ev.TaskID, string(ev.EventType))
	if err != nil {
		return true, eventbus.Retry(fmt.Errorf("check seen: %w", err))
	}
	if seen {
		return true, eventbus.OK()
	}
	return false, eventbus.Result{}
}

// payloadNumber reads a numeric payload field regardless of whether it
// arrived as a native Go int (in-process sequential mode) or a float64
// (every value that round-tripped through JSON on the broker).
func payloadNumber(payload map[string]interface{}, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// publishNext emits the follow-on event for a task, stamped with the same
// trace ID so the whole pipeline run shares one trace.
func (d *Deps) publishNext(ctx context.Context, taskID, traceID, actor string, t eventbus.EventType, payload map[string]interface{}) error {
	ev := eventbus.Event{
		EventID:   uuid.NewString(),
		TaskID:    taskID,
		TraceID:   traceID,
		Actor:     actor,
		EventType: t,
		Payload:   payload,
		Timestamp: time.Now(),
		Attempt:   1,
	}
	return d.Publisher.Publish(ctx, ev)
}
