package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"go.uber.org/zap"

	"github.com/timour/catalyst/pkg/logging"
)

const (
	// Namespace isolates catalyst's containers from any other containerd
	// tenant on the same host.
	Namespace = "catalyst"

	cpuPeriod = uint64(100000)
)

// ContainerdRuntime runs sandboxed commands via a local containerd socket.
type ContainerdRuntime struct {
	client *containerd.Client
	log    *zap.Logger
}

// NewContainerdRuntime dials socketPath.
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", socketPath, err)
	}
	return &ContainerdRuntime{client: client, log: logging.NewZap("sandbox", "info")}, nil
}

func (r *ContainerdRuntime) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Run creates a container from spec, starts it, captures stdout/stderr,
// waits up to spec.Timeout, and always removes the container afterward.
func (r *ContainerdRuntime) Run(ctx context.Context, spec RunSpec) (RunOutcome, error) {
	ctx = namespaces.WithNamespace(ctx, Namespace)
	start := time.Now()

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		r.log.Info("image not cached, pulling", zap.String("image", spec.Image), zap.String("run_id", spec.ID))
		image, err = r.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return RunOutcome{}, fmt.Errorf("pull image %s: %w", spec.Image, err)
		}
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithProcessArgs(spec.Command...),
	}
	if spec.Resources.CPUQuota > 0 {
		shares := uint64(spec.Resources.CPUQuota * 1024)
		quota := int64(spec.Resources.CPUQuota * float64(cpuPeriod))
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, cpuPeriod))
	}
	if spec.Resources.MemoryLimit > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(spec.Resources.MemoryLimit)))
	}
	if spec.WorkspaceSrc != "" {
		opts = append(opts, oci.WithMounts([]specs.Mount{{
			Source:      spec.WorkspaceSrc,
			Destination: "/workspace",
			Type:        "bind",
			Options:     []string{"rbind"},
		}}))
	}

	container, err := r.client.NewContainer(
		ctx,
		spec.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("create container %s: %w", spec.ID, err)
	}
	defer func() {
		_ = container.Delete(context.Background(), containerd.WithSnapshotCleanup)
	}()

	var stdout, stderr bytes.Buffer
	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		return RunOutcome{}, fmt.Errorf("create task for %s: %w", spec.ID, err)
	}
	defer func() {
		_, _ = task.Delete(context.Background())
	}()

	statusC, err := task.Wait(ctx)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("wait on task for %s: %w", spec.ID, err)
	}

	if err := task.Start(ctx); err != nil {
		return RunOutcome{}, fmt.Errorf("start task for %s: %w", spec.ID, err)
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	select {
	case status := <-statusC:
		return RunOutcome{
			ExitCode: int(status.ExitCode()),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	case <-time.After(timeout):
		r.log.Warn("run exceeded timeout, escalating to SIGTERM", zap.String("run_id", spec.ID), zap.Duration("timeout", timeout))
		_ = task.Kill(ctx, syscall.SIGTERM)
		select {
		case <-statusC:
		case <-time.After(10 * time.Second):
			r.log.Warn("run ignored SIGTERM, escalating to SIGKILL", zap.String("run_id", spec.ID))
			_ = task.Kill(ctx, syscall.SIGKILL)
			<-statusC
		}
		return RunOutcome{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			TimedOut: true,
			Duration: time.Since(start),
		}, nil
	}
}

// Status reports whether the containerd socket answers and whether image is
// already present in the content store, without pulling or launching
// anything.
func (r *ContainerdRuntime) Status(ctx context.Context, image string) (RuntimeStatus, error) {
	ctx = namespaces.WithNamespace(ctx, Namespace)

	if _, err := r.client.Version(ctx); err != nil {
		return RuntimeStatus{}, fmt.Errorf("containerd not reachable: %w", err)
	}

	_, err := r.client.GetImage(ctx, image)
	return RuntimeStatus{OK: true, ImageReady: err == nil}, nil
}
