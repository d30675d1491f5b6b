// Package handlers implements the per-stage agent logic — plan, architect,
// code, test, review, deploy, and the non-critical explorer — shared
// verbatim between event-driven workers and the sequential orchestrator.
package handlers

import (
	"context"
	"log/slog"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/llm"
	"github.com/timour/catalyst/pkg/sandbox"
	"github.com/timour/catalyst/pkg/store"
)

// TaskStore is the subset of *store.CachedStore the handlers (and the REST
// API) actually call. Accepting it as an interface lets tests substitute an
// in-memory fake instead of a live Postgres+Redis pair.
type TaskStore interface {
	CreateTask(ctx context.Context, t *store.Task) error
	GetTask(ctx context.Context, id string) (*store.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status, column string, payload interface{}) error
	LoadTaskHistory(ctx context.Context, taskID string) ([]store.AgentEvent, error)
	Health(ctx context.Context) store.HealthStatus
}

// Deps is the shared dependency bag injected into every stage handler.
// Constructed once at the composition root and passed to both the worker
// manager (event-driven mode) and the orchestrator (sequential mode), so
// the two modes execute identical handler logic.
type Deps struct {
	Store     TaskStore
	Publisher eventbus.EventPublisher
	LLM       llm.Client
	Sandbox   *sandbox.Executor
	Logger    *slog.Logger
	Seen      EventSeenChecker

	// LLMConfigured reports whether a real LLM credential was supplied at
	// startup, as opposed to falling back to the stub client. Surfaced by
	// /api/health so a missing key degrades rather than silently reviewing
	// every change with canned output.
	LLMConfigured bool
}
