package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/llm"
	"github.com/timour/catalyst/pkg/sandbox"
	"github.com/timour/catalyst/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDeps(t *testing.T, taskStatus string) (*Deps, *fakeTaskStore, *fakePublisher) {
	t.Helper()
	taskStore := newFakeTaskStore()
	pub := &fakePublisher{}

	task := &store.Task{
		ID:          uuid.NewString(),
		Description: "add a widget",
		Status:      taskStatus,
		Mode:        string("sequential"),
		TraceID:     uuid.NewString(),
	}
	require.NoError(t, taskStore.CreateTask(context.Background(), task))

	deps := &Deps{
		Store:     taskStore,
		Publisher: pub,
		LLM:       &llm.StubClient{Response: "a generated plan"},
		Sandbox:   sandbox.NewExecutor(&sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 0}}, "image", sandbox.Resources{}, time.Second, nil),
		Logger:    testLogger(),
		Seen:      NoopSeenChecker{},
	}
	return deps, taskStore, pub
}

func baseEvent(taskID, traceID string, t eventbus.EventType, payload map[string]interface{}) eventbus.Event {
	return eventbus.Event{
		EventID:   uuid.NewString(),
		TaskID:    taskID,
		TraceID:   traceID,
		Actor:     "test",
		EventType: t,
		Payload:   payload,
		Timestamp: time.Now(),
		Attempt:   1,
	}
}

func TestPlan_Success(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusPending)

	taskID := firstTaskID(taskStore)
	ev := baseEvent(taskID, "trace-1", eventbus.EventTaskInitiated, nil)

	result := deps.Plan(context.Background(), ev)
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusArchitect, updated.Status)

	next := pub.last()
	require.NotNil(t, next)
	assert.Equal(t, eventbus.EventPlanCreated, next.EventType)
	assert.Equal(t, "trace-1", next.TraceID)
}

func TestPlan_LLMFailureRetries(t *testing.T) {
	deps, taskStore, _ := newTestDeps(t, store.StatusPending)
	deps.LLM = &llm.StubClient{Err: assertErr("model unavailable")}

	taskID := firstTaskID(taskStore)
	result := deps.Plan(context.Background(), baseEvent(taskID, "trace-1", eventbus.EventTaskInitiated, nil))
	assert.Equal(t, eventbus.ResultRetry, result.Kind)
}

func TestPlan_GuardSkipsAlreadySeenEvent(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusPending)
	deps.Seen = alwaysSeen{}

	taskID := firstTaskID(taskStore)
	result := deps.Plan(context.Background(), baseEvent(taskID, "trace-1", eventbus.EventTaskInitiated, nil))

	require.Equal(t, eventbus.ResultOK, result.Kind)
	assert.Empty(t, pub.Published, "guard should short-circuit before publishing anything")
}

func TestArchitect_Success(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusArchitect)
	taskID := firstTaskID(taskStore)

	result := deps.Architect(context.Background(), baseEvent(taskID, "trace-2", eventbus.EventPlanCreated, map[string]interface{}{"plan": "do the thing"}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCoding, updated.Status)
	assert.Equal(t, eventbus.EventArchitectureProposed, pub.last().EventType)
}

func TestCode_Success(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusCoding)
	taskID := firstTaskID(taskStore)

	result := deps.Code(context.Background(), baseEvent(taskID, "trace-3", eventbus.EventArchitectureProposed, map[string]interface{}{"architecture": "modules..."}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusTesting, updated.Status)
	assert.Equal(t, eventbus.EventCodePROpened, pub.last().EventType)
}

func TestTest_PassingSuiteRequestsReview(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusTesting)
	fake := &sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 0, Stdout: "3 passed in 0.1s"}}
	deps.Sandbox = sandbox.NewExecutor(fake, "image", sandbox.Resources{}, time.Second, nil)

	taskID := firstTaskID(taskStore)
	result := deps.Test(context.Background(), baseEvent(taskID, "trace-4", eventbus.EventCodePROpened, map[string]interface{}{"diff": "+ some diff"}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReviewing, updated.Status)
	assert.Equal(t, eventbus.EventTestResults, pub.last().EventType)
}

func TestTest_FailingSuiteStillRequestsReview(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusTesting)
	fake := &sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 1, Stdout: "1 passed, 2 failed in 0.1s"}}
	deps.Sandbox = sandbox.NewExecutor(fake, "image", sandbox.Resources{}, time.Second, nil)

	taskID := firstTaskID(taskStore)
	result := deps.Test(context.Background(), baseEvent(taskID, "trace-5", eventbus.EventCodePROpened, map[string]interface{}{"diff": "+ some diff"}))

	require.Equal(t, eventbus.ResultOK, result.Kind, "a failing test suite is a real outcome, not a transient error")
	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReviewing, updated.Status, "the reviewer decides pass/fail, testing only reports")
	next := pub.last()
	require.NotNil(t, next)
	assert.Equal(t, eventbus.EventTestResults, next.EventType)
	assert.EqualValues(t, 2, next.Payload["failed"])
}

func TestReview_ApprovedMovesToDeploying(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusReviewing)
	deps.LLM = &llm.StubClient{Response: "APPROVE looks solid"}

	taskID := firstTaskID(taskStore)
	result := deps.Review(context.Background(), baseEvent(taskID, "trace-6", eventbus.EventTestResults, map[string]interface{}{"passed": 3, "failed": 0, "exit_code": 0}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDeploying, updated.Status)
	next := pub.last()
	require.NotNil(t, next)
	assert.Equal(t, eventbus.EventReviewDecision, next.EventType)
	assert.Equal(t, true, next.Payload["approved"])
}

func TestReview_LLMRejectsIsTerminal(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusReviewing)
	deps.LLM = &llm.StubClient{Response: "REJECT missing tests"}

	taskID := firstTaskID(taskStore)
	result := deps.Review(context.Background(), baseEvent(taskID, "trace-7", eventbus.EventTestResults, map[string]interface{}{"passed": 3, "failed": 0, "exit_code": 0}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, updated.Status)
	next := pub.last()
	require.NotNil(t, next)
	assert.Equal(t, eventbus.EventReviewDecision, next.EventType, "rejection never loops back to the coder stage")
	assert.Equal(t, false, next.Payload["approved"])
}

func TestReview_FailingTestsAutoRejectsWithoutCallingLLM(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusReviewing)
	deps.LLM = &llm.StubClient{Err: assertErr("should never be called")}

	taskID := firstTaskID(taskStore)
	result := deps.Review(context.Background(), baseEvent(taskID, "trace-7b", eventbus.EventTestResults, map[string]interface{}{"passed": 1, "failed": 2, "exit_code": 1}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, updated.Status)
	next := pub.last()
	require.NotNil(t, next)
	assert.Equal(t, eventbus.EventReviewDecision, next.EventType)
	assert.Equal(t, false, next.Payload["approved"])
}

func TestDeploy_SuccessfulRunMarksDone(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusDeploying)
	fake := &sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 0, Stdout: "deployed"}}
	deps.Sandbox = sandbox.NewExecutor(fake, "image", sandbox.Resources{}, time.Second, nil)

	taskID := firstTaskID(taskStore)
	result := deps.Deploy(context.Background(), baseEvent(taskID, "trace-8", eventbus.EventReviewDecision, map[string]interface{}{"approved": true}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, updated.Status)
	assert.Equal(t, eventbus.EventDeployComplete, pub.last().EventType)
}

func TestDeploy_NonZeroExitMarksFailed(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusDeploying)
	fake := &sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 1, Stderr: "deploy script failed"}}
	deps.Sandbox = sandbox.NewExecutor(fake, "image", sandbox.Resources{}, time.Second, nil)

	taskID := firstTaskID(taskStore)
	result := deps.Deploy(context.Background(), baseEvent(taskID, "trace-9", eventbus.EventReviewDecision, map[string]interface{}{"approved": true}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	updated, err := taskStore.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, updated.Status)
	assert.Equal(t, eventbus.EventDeployFailed, pub.last().EventType)
}

func TestDeploy_RejectedReviewIsNoop(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusRejected)
	fake := &sandbox.FakeContainerRuntime{Outcome: sandbox.RunOutcome{ExitCode: 0, Stdout: "deployed"}}
	deps.Sandbox = sandbox.NewExecutor(fake, "image", sandbox.Resources{}, time.Second, nil)

	taskID := firstTaskID(taskStore)
	result := deps.Deploy(context.Background(), baseEvent(taskID, "trace-9b", eventbus.EventReviewDecision, map[string]interface{}{"approved": false}))
	require.Equal(t, eventbus.ResultOK, result.Kind)

	assert.Empty(t, pub.Published, "a rejected review must not trigger a deploy or publish anything")
	assert.Empty(t, fake.Calls, "the sandbox must never run when the review was rejected")
}

func TestExplore_PublishesCompleteEvent(t *testing.T) {
	deps, taskStore, pub := newTestDeps(t, store.StatusPending)
	taskID := firstTaskID(taskStore)

	result := deps.Explore(context.Background(), baseEvent(taskID, "trace-10", eventbus.EventExplorerScanRequest, map[string]interface{}{"path": "pkg/store"}))
	require.Equal(t, eventbus.ResultOK, result.Kind)
	assert.Equal(t, eventbus.EventExplorerScanComplete, pub.last().EventType)
}

// firstTaskID returns the one task a newTestDeps fixture created.
func firstTaskID(s *fakeTaskStore) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.tasks {
		return id
	}
	return ""
}

type alwaysSeen struct{}

func (alwaysSeen) Seen(ctx context.Context, taskID, eventType string) (bool, error) {
	return true, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
