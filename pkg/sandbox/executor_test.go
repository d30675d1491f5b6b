package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(fake *FakeContainerRuntime) *Executor {
	return NewExecutor(fake, "catalyst/sandbox:latest", Resources{CPUQuota: 0.5, MemoryLimit: 512 << 20}, 30*time.Second, nil)
}

func TestRunCommand_NoRuntimeConfigured(t *testing.T) {
	exec := NewExecutor(nil, "image", Resources{}, time.Second, nil)

	_, err := exec.RunCommand(context.Background(), map[string]string{"a.txt": "hi"}, []string{"true"}, 0, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no container runtime configured")
}

func TestRunCommand_MaterializesWorkspaceAndDelegates(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{ExitCode: 0, Stdout: "ok"}}
	exec := newTestExecutor(fake)

	workspace := map[string]string{"main.py": "print('hi')"}
	outcome, err := exec.RunCommand(context.Background(), workspace, []string{"python", "main.py"}, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.ExitCode)

	require.Len(t, fake.Calls, 1)
	spec := fake.Calls[0]
	assert.Equal(t, []string{"python", "main.py"}, spec.Command)
	assert.Equal(t, Resources{CPUQuota: 0.5, MemoryLimit: 512 << 20}, spec.Resources)
	assert.NotEmpty(t, spec.WorkspaceSrc)
}

func TestRunCommand_InstallsRequirementsFirst(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{ExitCode: 0}}
	exec := newTestExecutor(fake)

	_, err := exec.RunCommand(context.Background(), nil, []string{"pytest"}, 0, nil, []string{"requests", "pyyaml"})
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, []string{"pip", "install", "-q", "requests", "pyyaml", "&&", "pytest"}, fake.Calls[0].Command)
}

func TestRunCommand_ZeroTimeoutFallsBackToDefault(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{ExitCode: 0}}
	exec := newTestExecutor(fake)

	_, err := exec.RunCommand(context.Background(), nil, []string{"true"}, 0, nil, nil)
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, 30*time.Second, fake.Calls[0].Timeout)
}

func TestRunCommand_PropagatesRuntimeError(t *testing.T) {
	fake := &FakeContainerRuntime{Err: errors.New("containerd unreachable")}
	exec := newTestExecutor(fake)

	_, err := exec.RunCommand(context.Background(), nil, []string{"true"}, 0, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "containerd unreachable")
}

func TestRunPythonTests_ParsesSummary(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{
		ExitCode: 1,
		Stdout:   "====== 3 passed, 1 failed, 2 skipped in 0.42s ======",
	}}
	exec := newTestExecutor(fake)

	summary, err := exec.RunPythonTests(context.Background(), map[string]string{"test_x.py": "def test(): pass"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.ExitCode)
}

func TestRunPythonTests_MergesSourceFilesIntoWorkspace(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{ExitCode: 0}}
	exec := newTestExecutor(fake)

	_, err := exec.RunPythonTests(context.Background(),
		map[string]string{"test_x.py": "def test(): pass"},
		map[string]string{"x.py": "def f(): return 1"},
		nil, []string{"-k", "test_x"},
	)
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, []string{"pytest", "-q", "/workspace", "-k", "test_x"}, fake.Calls[0].Command)
}

func TestRunJavaScriptTests_ParsesSummary(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{
		ExitCode: 0,
		Stdout:   "Tests:       1 failed, 3 passed, 4 total",
	}}
	exec := newTestExecutor(fake)

	summary, err := exec.RunJavaScriptTests(context.Background(), map[string]string{"x.test.js": "test('x', () => {})"}, nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
}

func TestRunLinter_DelegatesToRunCommand(t *testing.T) {
	fake := &FakeContainerRuntime{Outcome: RunOutcome{ExitCode: 0}}
	exec := newTestExecutor(fake)

	_, err := exec.RunLinter(context.Background(), map[string]string{"a.py": "x=1"}, "ruff", []string{"check", "."})
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, []string{"ruff", "/workspace", "check", "."}, fake.Calls[0].Command)
}

func TestStatus_ReportsRuntimeHealth(t *testing.T) {
	fake := &FakeContainerRuntime{StatusResult: RuntimeStatus{OK: true, ImageReady: false}}
	exec := newTestExecutor(fake)

	status := exec.Status(context.Background())
	assert.True(t, status.ContainerRuntimeOK)
	assert.False(t, status.ImageReady)
	assert.Equal(t, Resources{CPUQuota: 0.5, MemoryLimit: 512 << 20}, status.Limits)
}

func TestStatus_NoRuntimeConfigured(t *testing.T) {
	exec := NewExecutor(nil, "image", Resources{}, time.Second, nil)
	status := exec.Status(context.Background())
	assert.False(t, status.ContainerRuntimeOK)
}

func TestParsePytestSummary_NoMatches(t *testing.T) {
	summary := parsePytestSummary("no recognizable output")
	assert.Equal(t, TestSummary{}, summary)
}

func TestParseJestSummary_NoMatches(t *testing.T) {
	summary := parseJestSummary("no recognizable output")
	assert.Equal(t, TestSummary{}, summary)
}
