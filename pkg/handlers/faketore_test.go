package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/timour/catalyst/pkg/store"
)

// fakeTaskStore is an in-memory TaskStore for handler tests — no Postgres,
// no Redis, just a map guarded by a mutex.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*store.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*store.Task)}
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, t *store.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) UpdateTaskStatus(ctx context.Context, id, status, column string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = status
	if column != "" {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		switch column {
		case "plan":
			t.Plan = body
		case "architecture":
			t.Architecture = body
		case "code_diff":
			t.CodeDiff = body
		case "test_report":
			t.TestReport = body
		case "review":
			t.Review = body
		case "deploy_report":
			t.DeployReport = body
		}
	}
	return nil
}

func (f *fakeTaskStore) LoadTaskHistory(ctx context.Context, taskID string) ([]store.AgentEvent, error) {
	return nil, nil
}

func (f *fakeTaskStore) Health(ctx context.Context) store.HealthStatus {
	return store.HealthStatus{DatabaseOK: true, CacheOK: true}
}
