package controller_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

// testUnauthorizedError implements the controller's private error interface so
// fakes can return the fatal class.
type testUnauthorizedError struct{}

func (testUnauthorizedError) Error() string   { return "unauthorized" }
func (testUnauthorizedError) IsUnauthorized() {}

// testNotFoundError marks a resource as absent the way the adapter does.
type testNotFoundError struct{}

func (testNotFoundError) Error() string { return "not found" }
func (testNotFoundError) IsNotFound()   {}

// fakeRepo is a hand-rolled Repository double. Behavior is overridden per
// test via the function fields; unset queries return zero values.
type fakeRepo struct {
	mu sync.Mutex

	listPodsFn    func(ctx context.Context, namespace string) ([]controller.PodStatus, error)
	podLogsFn     func(ctx context.Context, namespace, name string, tailLines int64) (string, error)
	podEventsFn   func(ctx context.Context, namespace, name string) ([]controller.Event, error)
	memoryUsageFn func(ctx context.Context, namespace, name string) (string, error)
	resolveFn     func(ctx context.Context, namespace, podName string) (string, error)
	getLimitsFn   func(ctx context.Context, namespace, name string) (*controller.DeploymentLimits, error)
	getReplicasFn func(ctx context.Context, namespace, name string) (int32, error)
	setLimitsFn   func(ctx context.Context, namespace, name string, limits controller.DeploymentLimits) error
	restartFn     func(ctx context.Context, namespace, name string, restartedAt time.Time) error
	scaleFn       func(ctx context.Context, namespace, name string, replicas int32) error
	deletePodFn   func(ctx context.Context, namespace, name, uid string) error

	setLimitsCalls []controller.DeploymentLimits
	deletedPods    []string
	restarted      []string
	scaledTo       []int32
}

func (f *fakeRepo) ListPodsQuery(ctx context.Context, namespace string) ([]controller.PodStatus, error) {
	if f.listPodsFn != nil {
		return f.listPodsFn(ctx, namespace)
	}

	return nil, nil
}

func (f *fakeRepo) GetPodLogsQuery(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	if f.podLogsFn != nil {
		return f.podLogsFn(ctx, namespace, name, tailLines)
	}

	return "", nil
}

func (f *fakeRepo) ListPodEventsQuery(ctx context.Context, namespace, name string) ([]controller.Event, error) {
	if f.podEventsFn != nil {
		return f.podEventsFn(ctx, namespace, name)
	}

	return nil, nil
}

func (f *fakeRepo) GetPodMemoryUsageQuery(ctx context.Context, namespace, name string) (string, error) {
	if f.memoryUsageFn != nil {
		return f.memoryUsageFn(ctx, namespace, name)
	}

	return "", testNotFoundError{}
}

func (f *fakeRepo) ResolveDeploymentQuery(ctx context.Context, namespace, podName string) (string, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, namespace, podName)
	}

	return "", errors.New("no resolver configured")
}

func (f *fakeRepo) GetDeploymentLimitsQuery(ctx context.Context, namespace, name string) (*controller.DeploymentLimits, error) {
	if f.getLimitsFn != nil {
		return f.getLimitsFn(ctx, namespace, name)
	}

	return &controller.DeploymentLimits{}, nil
}

func (f *fakeRepo) GetDeploymentReplicasQuery(ctx context.Context, namespace, name string) (int32, error) {
	if f.getReplicasFn != nil {
		return f.getReplicasFn(ctx, namespace, name)
	}

	return 1, nil
}

func (f *fakeRepo) SetDeploymentLimitsCommand(ctx context.Context, namespace, name string, limits controller.DeploymentLimits) error {
	f.mu.Lock()
	f.setLimitsCalls = append(f.setLimitsCalls, limits)
	f.mu.Unlock()

	if f.setLimitsFn != nil {
		return f.setLimitsFn(ctx, namespace, name, limits)
	}

	return nil
}

func (f *fakeRepo) RestartDeploymentCommand(ctx context.Context, namespace, name string, restartedAt time.Time) error {
	f.mu.Lock()
	f.restarted = append(f.restarted, namespace+"/"+name)
	f.mu.Unlock()

	if f.restartFn != nil {
		return f.restartFn(ctx, namespace, name, restartedAt)
	}

	return nil
}

func (f *fakeRepo) ScaleDeploymentCommand(ctx context.Context, namespace, name string, replicas int32) error {
	f.mu.Lock()
	f.scaledTo = append(f.scaledTo, replicas)
	f.mu.Unlock()

	if f.scaleFn != nil {
		return f.scaleFn(ctx, namespace, name, replicas)
	}

	return nil
}

func (f *fakeRepo) DeletePodCommand(ctx context.Context, namespace, name, uid string) error {
	f.mu.Lock()
	f.deletedPods = append(f.deletedPods, namespace+"/"+name+"/"+uid)
	f.mu.Unlock()

	if f.deletePodFn != nil {
		return f.deletePodFn(ctx, namespace, name, uid)
	}

	return nil
}

// fakeOracle is a scriptable Oracle double.
type fakeOracle struct {
	analyzeFn func(ctx context.Context, req controller.OracleRequest) (*controller.OracleResponse, error)
	calls     int
}

func (f *fakeOracle) Analyze(ctx context.Context, req controller.OracleRequest) (*controller.OracleResponse, error) {
	f.calls++

	return f.analyzeFn(ctx, req)
}

// fakeAudit records every appended ActionRecord.
type fakeAudit struct {
	mu      sync.Mutex
	records []controller.ActionRecord
	err     error
}

func (f *fakeAudit) Append(_ context.Context, rec controller.ActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, rec)

	return f.err
}

func (f *fakeAudit) all() []controller.ActionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]controller.ActionRecord(nil), f.records...)
}

// fakePublisher captures cycle snapshots.
type fakePublisher struct {
	mu    sync.Mutex
	snaps []controller.CycleSnapshot
}

func (f *fakePublisher) PublishCycle(snap controller.CycleSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snaps = append(f.snaps, snap)
}

func (f *fakePublisher) last() (controller.CycleSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.snaps) == 0 {
		return controller.CycleSnapshot{}, false
	}

	return f.snaps[len(f.snaps)-1], true
}
