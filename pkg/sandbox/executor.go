package sandbox

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timour/catalyst/pkg/logging"
	"github.com/timour/catalyst/pkg/metrics"
)

// TestSummary is the normalized result of a test-suite run, independent of
// which runner (pytest, jest) produced it.
type TestSummary struct {
	Passed   int
	Failed   int
	Skipped  int
	ExitCode int
	Output   string
	Duration time.Duration
}

// Status is the result of a health probe against the container runtime,
// backing /api/sandbox/status.
type Status struct {
	ContainerRuntimeOK bool
	ImageReady         bool
	Limits             Resources
}

// Executor runs sandboxed commands against a workspace materialized from a
// task's code diff.
type Executor struct {
	runtime        ContainerRuntime
	image          string
	defaultLimit   Resources
	defaultTimeout time.Duration
	metrics        *metrics.SandboxMetrics
	log            *zap.Logger
}

// NewExecutor builds an Executor over runtime with the given defaults.
func NewExecutor(runtime ContainerRuntime, image string, defaultLimit Resources, defaultTimeout time.Duration, m *metrics.SandboxMetrics) *Executor {
	return &Executor{
		runtime:        runtime,
		image:          image,
		defaultLimit:   defaultLimit,
		defaultTimeout: defaultTimeout,
		metrics:        m,
		log:            logging.NewZap("sandbox", "info"),
	}
}

// RunCommand materializes files on a host temp dir and runs an arbitrary
// command inside a fresh container bound to it. timeout of 0 falls back to
// the executor's default; requirements are installed before command runs.
func (e *Executor) RunCommand(ctx context.Context, files map[string]string, command []string, timeout time.Duration, env []string, requirements []string) (RunOutcome, error) {
	if e.runtime == nil {
		return RunOutcome{}, fmt.Errorf("no container runtime configured")
	}

	dir, err := materializeWorkspace(files)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("materialize workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	spec := RunSpec{
		ID:           "run-" + uuid.NewString(),
		Image:        e.image,
		Command:      installPrefix(requirements, command),
		Env:          env,
		WorkspaceSrc: dir,
		Resources:    e.defaultLimit,
		Timeout:      timeout,
	}

	start := time.Now()
	outcome, err := e.runtime.Run(ctx, spec)
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	if err != nil {
		e.log.Error("sandbox run failed", zap.String("run_id", spec.ID), zap.Error(err))
	} else if outcome.TimedOut {
		e.log.Warn("sandbox run timed out", zap.String("run_id", spec.ID))
		outcome.Stderr += fmt.Sprintf("\nsandbox: timeout after %s, container killed", timeout)
	} else {
		e.log.Debug("sandbox run finished", zap.String("run_id", spec.ID), zap.Int("exit_code", outcome.ExitCode))
	}
	e.record("command", outcome, err, start)
	return outcome, err
}

// installPrefix prepends a pip-install step to command when requirements are
// given, so RunCommand's single container invocation covers both dependency
// install and the caller's actual command.
func installPrefix(requirements []string, command []string) []string {
	if len(requirements) == 0 {
		return command
	}
	install := append([]string{"pip", "install", "-q"}, requirements...)
	joined := append(install, "&&")
	return append(joined, command...)
}

// RunPythonTests runs pytest against the union of testFiles and sourceFiles
// and parses its summary line ("3 passed, 1 failed, 2 skipped").
// requirements are installed into the container before pytest runs;
// extraArgs are appended to the pytest invocation.
func (e *Executor) RunPythonTests(ctx context.Context, testFiles, sourceFiles map[string]string, requirements []string, extraArgs []string) (TestSummary, error) {
	files := mergeWorkspaces(testFiles, sourceFiles)
	command := append([]string{"pytest", "-q", "/workspace"}, extraArgs...)
	outcome, err := e.RunCommand(ctx, files, command, 0, nil, requirements)
	if err != nil {
		return TestSummary{}, err
	}
	summary := parsePytestSummary(outcome.Stdout + outcome.Stderr)
	summary.ExitCode = outcome.ExitCode
	summary.Output = outcome.Stdout
	summary.Duration = outcome.Duration
	return summary, nil
}

// RunJavaScriptTests runs jest (or testCommand, if given) against the union
// of testFiles and sourceFiles and parses its summary line ("Tests: 1
// failed, 3 passed, 4 total"). packageManifest, when non-empty, is
// materialized as package.json so npm can resolve dependencies.
func (e *Executor) RunJavaScriptTests(ctx context.Context, testFiles, sourceFiles map[string]string, packageManifest string, testCommand []string) (TestSummary, error) {
	files := mergeWorkspaces(testFiles, sourceFiles)
	if packageManifest != "" {
		files["package.json"] = packageManifest
	}
	command := testCommand
	if len(command) == 0 {
		command = []string{"npx", "jest", "--ci", "/workspace"}
	}
	outcome, err := e.RunCommand(ctx, files, command, 0, nil, nil)
	if err != nil {
		return TestSummary{}, err
	}
	summary := parseJestSummary(outcome.Stdout + outcome.Stderr)
	summary.ExitCode = outcome.ExitCode
	summary.Output = outcome.Stdout
	summary.Duration = outcome.Duration
	return summary, nil
}

// RunLinter runs linter (e.g. "ruff", "eslint") over files with extraArgs
// appended.
func (e *Executor) RunLinter(ctx context.Context, files map[string]string, linter string, extraArgs []string) (RunOutcome, error) {
	command := append([]string{linter, "/workspace"}, extraArgs...)
	return e.RunCommand(ctx, files, command, 0, nil, nil)
}

// Status probes the container runtime and reports whether it is reachable
// and whether the sandbox image is already cached, without launching a
// container.
func (e *Executor) Status(ctx context.Context) Status {
	if e.runtime == nil {
		return Status{Limits: e.defaultLimit}
	}
	rs, err := e.runtime.Status(ctx, e.image)
	if err != nil {
		e.log.Warn("sandbox status probe failed", zap.Error(err))
		return Status{Limits: e.defaultLimit}
	}
	return Status{
		ContainerRuntimeOK: rs.OK,
		ImageReady:         rs.ImageReady,
		Limits:             e.defaultLimit,
	}
}

func (e *Executor) record(kind string, outcome RunOutcome, err error, start time.Time) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	} else if outcome.TimedOut {
		result = "timeout"
	} else if outcome.ExitCode != 0 {
		result = "nonzero"
	}
	e.metrics.RecordRun(kind, result, time.Since(start))
}

func mergeWorkspaces(a, b map[string]string) map[string]string {
	files := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		files[k] = v
	}
	for k, v := range b {
		files[k] = v
	}
	return files
}

func materializeWorkspace(files map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "catalyst-sandbox-*")
	if err != nil {
		return "", err
	}
	for name, content := range files {
		path := dir + "/" + name
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("write workspace file %s: %w", name, err)
		}
	}
	return dir, nil
}

var (
	pytestSummaryRe = regexp.MustCompile(`(\d+) passed|(\d+) failed|(\d+) skipped`)
	jestSummaryRe   = regexp.MustCompile(`Tests:\s+(.*)`)
	jestCountRe     = regexp.MustCompile(`(\d+) (failed|passed|skipped)`)
)

func parsePytestSummary(output string) TestSummary {
	var s TestSummary
	for _, m := range pytestSummaryRe.FindAllStringSubmatch(output, -1) {
		switch {
		case m[1] != "":
			s.Passed, _ = strconv.Atoi(m[1])
		case m[2] != "":
			s.Failed, _ = strconv.Atoi(m[2])
		case m[3] != "":
			s.Skipped, _ = strconv.Atoi(m[3])
		}
	}
	return s
}

func parseJestSummary(output string) TestSummary {
	var s TestSummary
	line := jestSummaryRe.FindString(output)
	for _, m := range jestCountRe.FindAllStringSubmatch(line, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "passed":
			s.Passed = n
		case "failed":
			s.Failed = n
		case "skipped":
			s.Skipped = n
		}
	}
	return s
}
