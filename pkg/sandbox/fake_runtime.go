package sandbox

import "context"

// FakeContainerRuntime is a ContainerRuntime stand-in for tests: it never
// touches containerd, returning a scripted RunOutcome for every Run call and
// a scripted RuntimeStatus for every Status call.
type FakeContainerRuntime struct {
	Outcome RunOutcome
	Err     error
	Calls   []RunSpec

	StatusResult RuntimeStatus
	StatusErr    error
}

func (f *FakeContainerRuntime) Run(ctx context.Context, spec RunSpec) (RunOutcome, error) {
	f.Calls = append(f.Calls, spec)
	return f.Outcome, f.Err
}

func (f *FakeContainerRuntime) Status(ctx context.Context, image string) (RuntimeStatus, error) {
	if f.StatusErr != nil {
		return RuntimeStatus{}, f.StatusErr
	}
	if f.StatusResult == (RuntimeStatus{}) {
		return RuntimeStatus{OK: true, ImageReady: true}, nil
	}
	return f.StatusResult, nil
}

func (f *FakeContainerRuntime) Close() error { return nil }
