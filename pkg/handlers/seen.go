package handlers

import (
	"context"

	"github.com/timour/catalyst/pkg/store"
)

// EventSeenChecker answers whether a task has already been processed for a
// given event type, the idempotence predicate behind exactly-once-per-
// task-per-kind handler execution. It is injectable so dedupe can be
// disabled entirely via Config.AuditDedupeEnabled.
type EventSeenChecker interface {
	Seen(ctx context.Context, taskID, eventType string) (bool, error)
}

// AuditSeenChecker is the default checker: it consults the agent_events
// audit table written by eventbus.Publisher.
type AuditSeenChecker struct {
	Store *store.PostgresStore
}

func (c *AuditSeenChecker) Seen(ctx context.Context, taskID, eventType string) (bool, error) {
	return c.Store.HasSeenEvent(ctx, taskID, eventType)
}

// NoopSeenChecker disables dedupe: every event is treated as unseen. Used
// when Config.AuditDedupeEnabled is false.
type NoopSeenChecker struct{}

func (NoopSeenChecker) Seen(ctx context.Context, taskID, eventType string) (bool, error) {
	return false, nil
}
