// Package sandbox runs agent-submitted commands (test suites, linters,
// arbitrary shell commands) inside ephemeral, resource-capped containers so
// untrusted code from the coder agent never touches the host.
package sandbox

import (
	"context"
	"time"
)

// Resources caps what a sandboxed container may consume.
type Resources struct {
	CPUQuota    float64 // fractional cores, e.g. 0.5
	MemoryLimit int64   // bytes
}

// RunSpec describes one ephemeral container invocation.
type RunSpec struct {
	ID          string
	Image       string
	Command     []string
	Env         []string
	WorkspaceSrc string // host directory bind-mounted at /workspace
	Resources   Resources
	Timeout     time.Duration
}

// RunOutcome is what a completed (or forcibly stopped) container produced.
type RunOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// RuntimeStatus answers whether the container backend and the sandbox image
// are ready to serve a run, backing /api/sandbox/status.
type RuntimeStatus struct {
	OK         bool
	ImageReady bool
}

// ContainerRuntime is the seam between the sandbox executor and the
// underlying container technology. ContainerdRuntime is the production
// implementation; FakeContainerRuntime backs tests.
type ContainerRuntime interface {
	// Run creates, starts, waits for, and tears down one container,
	// enforcing spec.Timeout. It always removes the container and its
	// snapshot before returning, success or failure.
	Run(ctx context.Context, spec RunSpec) (RunOutcome, error)
	// Status reports whether the backend is reachable and whether image is
	// already cached locally, without launching a container.
	Status(ctx context.Context, image string) (RuntimeStatus, error)
	// Close releases the runtime's connection to the container backend.
	Close() error
}
