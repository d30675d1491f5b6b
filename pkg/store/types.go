package store

import (
	"encoding/json"
	"time"
)

// Task is the durable record of one pipeline run, updated by every agent as
// the task moves from plan through deploy.
type Task struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	Mode         string          `json:"mode"`
	TraceID      string          `json:"trace_id"`
	Plan         json.RawMessage `json:"plan,omitempty"`
	Architecture json.RawMessage `json:"architecture,omitempty"`
	CodeDiff     json.RawMessage `json:"code_diff,omitempty"`
	TestReport   json.RawMessage `json:"test_report,omitempty"`
	Review       json.RawMessage `json:"review,omitempty"`
	DeployReport json.RawMessage `json:"deploy_report,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Task status values, assigned by the orchestrator and agent handlers as a
// task moves through the pipeline.
const (
	StatusPending     = "pending"
	StatusPlanning    = "planning"
	StatusArchitect   = "architecting"
	StatusCoding      = "coding"
	StatusTesting     = "testing"
	StatusReviewing   = "reviewing"
	StatusDeploying   = "deploying"
	StatusDone        = "done"
	StatusFailed      = "failed"
	StatusRejected    = "rejected"
)

// AgentEvent is the audit record of one event that touched a task, keyed so
// that a given task can be recorded as having seen a given event type at
// most once.
type AgentEvent struct {
	EventID    string          `json:"event_id"`
	TaskID     string          `json:"task_id"`
	TraceID    string          `json:"trace_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
