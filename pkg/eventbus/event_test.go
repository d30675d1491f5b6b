package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "catalyst.task.initiated", RoutingKey(EventTaskInitiated))
	assert.Equal(t, "catalyst.deploy.complete", RoutingKey(EventDeployComplete))
}

func TestQueueNameIsFixedPerEventType(t *testing.T) {
	want := map[EventType]string{
		EventTaskInitiated:        "planner-queue",
		EventPlanCreated:          "architect-queue",
		EventArchitectureProposed: "coder-queue",
		EventCodePROpened:         "tester-queue",
		EventTestResults:          "reviewer-queue",
		EventReviewDecision:       "deployer-queue",
		EventExplorerScanRequest:  "explorer-queue",
	}
	for kind, queue := range want {
		assert.Equal(t, queue, QueueName(kind), "queue name for %s", kind)
	}
}

func TestQueueBindingsCoverTopology(t *testing.T) {
	names := make([]string, len(queueBindings))
	for i, b := range queueBindings {
		names[i] = b.Queue
	}
	assert.ElementsMatch(t, []string{
		"planner-queue", "architect-queue", "coder-queue", "tester-queue",
		"reviewer-queue", "deployer-queue", "explorer-queue", "orchestrator-queue",
	}, names)
}

func TestAgentQueuesCoverCriticalPath(t *testing.T) {
	want := []EventType{
		EventTaskInitiated,
		EventPlanCreated,
		EventArchitectureProposed,
		EventCodePROpened,
		EventTestResults,
		EventReviewDecision,
		EventExplorerScanRequest,
	}
	assert.ElementsMatch(t, want, agentQueues)
}
