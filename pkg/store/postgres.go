package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/timour/catalyst/pkg/eventbus"
)

// ErrTaskNotFound is returned when a task id has no matching row.
var ErrTaskNotFound = errors.New("task not found")

// PostgresStore persists tasks and agent events to the relational schema
// applied by ApplyMigrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection pool against connString.
func NewPostgresStore(connString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection pool for ApplyMigrations.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// CreateTask inserts a new task row with t's initial status. It is
// idempotent by id: a row that already exists with that id is left as it is.
func (s *PostgresStore) CreateTask(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (id, description, status, mode, trace_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Description, t.Status, t.Mode, t.TraceID)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask loads a task by id.
func (s *PostgresStore) GetTask(ctx context.Context, id string) (*Task, error) {
	query := `
		SELECT id, description, status, mode, trace_id, plan, architecture,
		       code_diff, test_report, review, deploy_report, created_at, updated_at
		FROM tasks WHERE id = $1
	`
	var t Task
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Description, &t.Status, &t.Mode, &t.TraceID,
		&t.Plan, &t.Architecture, &t.CodeDiff, &t.TestReport, &t.Review, &t.DeployReport,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// UpdateTaskStatus sets a task's status and, optionally, one of its stage
// result columns (identified by column name) in a single statement.
func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id, status string, column string, payload interface{}) error {
	if column == "" {
		query := `UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2`
		res, err := s.db.ExecContext(ctx, query, status, id)
		return checkRowsAffected(res, err, id)
	}

	if !allowedTaskColumn(column) {
		return fmt.Errorf("update task %s: invalid column %q", id, column)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", id, err)
	}

	query := fmt.Sprintf(`UPDATE tasks SET status = $1, %s = $2, updated_at = now() WHERE id = $3`, column)
	res, err := s.db.ExecContext(ctx, query, status, body, id)
	return checkRowsAffected(res, err, id)
}

// allowedTaskColumn guards UpdateTaskStatus's dynamic column name against
// anything other than the known stage-result columns.
func allowedTaskColumn(column string) bool {
	switch column {
	case "plan", "architecture", "code_diff", "test_report", "review", "deploy_report":
		return true
	default:
		return false
	}
}

func checkRowsAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// RecordEvent inserts an audit row for ev. It implements
// eventbus.AuditRecorder so Publisher can write the audit trail directly.
func (s *PostgresStore) RecordEvent(ctx context.Context, ev eventbus.Event) error {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload %s: %w", ev.EventID, err)
	}
	query := `
		INSERT INTO agent_events (event_id, task_id, trace_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query, ev.EventID, ev.TaskID, ev.TraceID, string(ev.EventType), body, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.EventID, err)
	}
	return nil
}

// LoadTaskHistory returns every recorded event for a task, oldest first.
func (s *PostgresStore) LoadTaskHistory(ctx context.Context, taskID string) ([]AgentEvent, error) {
	query := `
		SELECT event_id, task_id, trace_id, event_type, payload, occurred_at
		FROM agent_events WHERE task_id = $1 ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("load history for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var events []AgentEvent
	for rows.Next() {
		var e AgentEvent
		if err := rows.Scan(&e.EventID, &e.TaskID, &e.TraceID, &e.EventType, &e.Payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event for task %s: %w", taskID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error for task %s: %w", taskID, err)
	}
	return events, nil
}

// HasSeenEvent reports whether the given (task, event_type) pair has
// already been recorded, backing the default EventSeenChecker.
func (s *PostgresStore) HasSeenEvent(ctx context.Context, taskID, eventType string) (bool, error) {
	query := `SELECT 1 FROM agent_events WHERE task_id = $1 AND event_type = $2 LIMIT 1`
	var one int
	err := s.db.QueryRowContext(ctx, query, taskID, eventType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check seen event for task %s: %w", taskID, err)
	}
	return true, nil
}

// Healthy reports whether the underlying connection is reachable, used by
// the /api/health endpoint.
func (s *PostgresStore) Healthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}
