package controller_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

type serviceHarness struct {
	svc       *controller.Service
	repo      *fakeRepo
	ledger    *controller.Ledger
	audit     *fakeAudit
	publisher *fakePublisher
}

func newServiceHarness(t *testing.T, repo *fakeRepo, oracle controller.Oracle, policy controller.SafetyPolicy, maxPerHour int) *serviceHarness {
	t.Helper()

	logger := slog.Default()
	ledger := controller.NewLedger(time.Minute, maxPerHour)
	audit := &fakeAudit{}
	publisher := &fakePublisher{}

	svc := controller.New(
		logger,
		controller.NewCollector(logger, repo, 3, 5*time.Minute, 50),
		controller.NewDiagnoser(logger, oracle, time.Second, 8192),
		controller.NewGovernor(policy, ledger, nil),
		controller.NewRemediator(logger, repo, ledger, testRemediationConfig()),
		ledger,
		audit,
		publisher,
		[]string{"default", "kube-system"},
		10*time.Second,
	)

	return &serviceHarness{
		svc:       svc,
		repo:      repo,
		ledger:    ledger,
		audit:     audit,
		publisher: publisher,
	}
}

func crashingPod(namespace, name string) controller.PodStatus {
	pod := runningPod(namespace, name)
	pod.Containers[0].WaitingReason = "CrashLoopBackOff"

	return pod
}

func listPodsByNamespace(pods map[string][]controller.PodStatus) func(context.Context, string) ([]controller.PodStatus, error) {
	return func(_ context.Context, namespace string) ([]controller.PodStatus, error) {
		return pods[namespace], nil
	}
}

func TestService_CycleCommand_RemediatesCrashLoop(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {crashingPod("default", "web-1")},
		}),
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{}, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	require.Len(t, repo.deletedPods, 1)
	require.Equal(t, "default/web-1/uid-web-1", repo.deletedPods[0])

	records := h.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, controller.OutcomeSucceeded, records[0].Outcome)
	require.Equal(t, controller.ActionDeletePod, records[0].Action)
	require.NotEmpty(t, records[0].ID)

	snap, ok := h.publisher.last()
	require.True(t, ok)
	require.Len(t, snap.Issues, 1)
	require.Len(t, snap.Records, 1)
	require.Equal(t, 1, snap.Ledger.ActionsLastHour)
}

func TestService_CycleCommand_OracleDrivesAction(t *testing.T) {
	t.Parallel()

	pod := runningPod("default", "web-1")
	pod.Containers[0].LastTerminationReason = "OOMKilled"

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {pod},
		}),
		resolveFn: func(_ context.Context, _, _ string) (string, error) {
			return "web", nil
		},
	}

	oracle := &fakeOracle{
		analyzeFn: func(_ context.Context, req controller.OracleRequest) (*controller.OracleResponse, error) {
			require.Equal(t, controller.IssueOOMKilled, req.IssueKind)

			return &controller.OracleResponse{
				RootCause: "memory limit too low for steady-state heap",
				Action:    "IncreaseLimits",
			}, nil
		},
	}

	h := newServiceHarness(t, repo, oracle, controller.SafetyPolicy{}, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	require.Equal(t, 1, oracle.calls)
	require.Len(t, repo.setLimitsCalls, 1)

	records := h.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, controller.ActionIncreaseLimits, records[0].Action)
	require.Equal(t, "memory limit too low for steady-state heap", records[0].RootCause)
}

func TestService_CycleCommand_ExcludedNamespace(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"kube-system": {crashingPod("kube-system", "coredns-1")},
		}),
	}

	policy := controller.SafetyPolicy{ExcludedNamespaces: []string{"kube-system"}}
	h := newServiceHarness(t, repo, nil, policy, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	require.Empty(t, repo.deletedPods)

	records := h.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, controller.OutcomeSkippedExcluded, records[0].Outcome)
}

func TestService_CycleCommand_DryRun(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {crashingPod("default", "web-1")},
		}),
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{DryRun: true}, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	require.Empty(t, repo.deletedPods)

	records := h.audit.all()
	require.Len(t, records, 1)
	require.Equal(t, controller.OutcomeSkippedDryRun, records[0].Outcome)
	// Dry run still reports the action that would have run.
	require.Equal(t, controller.ActionDeletePod, records[0].Action)
}

func TestService_CycleCommand_CooldownAcrossCycles(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {crashingPod("default", "web-1")},
		}),
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{}, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))
	require.NoError(t, h.svc.CycleCommand(t.Context()))

	// First cycle acts, second is silenced by the per-resource cooldown.
	require.Len(t, repo.deletedPods, 1)

	records := h.audit.all()
	require.Len(t, records, 2)
	require.Equal(t, controller.OutcomeSucceeded, records[0].Outcome)
	require.Equal(t, controller.OutcomeSkippedCooldown, records[1].Outcome)
}

func TestService_CycleCommand_RateLimitExhausted(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {
				crashingPod("default", "web-1"),
				crashingPod("default", "web-2"),
				crashingPod("default", "web-3"),
			},
		}),
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{}, 2)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	require.Len(t, repo.deletedPods, 2)

	records := h.audit.all()
	require.Len(t, records, 3)

	outcomes := map[controller.Outcome]int{}
	for _, rec := range records {
		outcomes[rec.Outcome]++
	}

	require.Equal(t, 2, outcomes[controller.OutcomeSucceeded])
	require.Equal(t, 1, outcomes[controller.OutcomeSkippedThrottled])
}

func TestService_CycleCommand_FatalOnUnauthorized(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		listPodsFn: func(_ context.Context, _ string) ([]controller.PodStatus, error) {
			return nil, testUnauthorizedError{}
		},
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{}, 20)

	err := h.svc.CycleCommand(t.Context())
	require.ErrorIs(t, err, controller.ErrPlatformUnavailable)
}

func TestService_CycleCommand_OneRecordPerIssue(t *testing.T) {
	t.Parallel()

	pod := crashingPod("default", "web-1")
	pod.Containers[0].RestartCount = 9

	repo := &fakeRepo{
		listPodsFn: listPodsByNamespace(map[string][]controller.PodStatus{
			"default": {pod},
		}),
	}

	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{DryRun: true}, 20)

	require.NoError(t, h.svc.CycleCommand(t.Context()))

	snap, ok := h.publisher.last()
	require.True(t, ok)
	require.Len(t, snap.Issues, 2)
	require.Len(t, snap.Records, 2)
	require.Len(t, h.audit.all(), 2)
}

func TestService_Start_Ready_Shutdown(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	h := newServiceHarness(t, repo, nil, controller.SafetyPolicy{}, 20)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, h.svc.Start(ctx))

	select {
	case <-h.svc.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("service did not become ready")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	require.NoError(t, h.svc.Shutdown(shutdownCtx))

	select {
	case <-h.svc.Done():
	default:
		t.Fatal("loop still running after shutdown")
	}

	require.NoError(t, h.svc.Err())
}

func TestService_Ping(t *testing.T) {
	t.Parallel()

	t.Run("before ready returns error", func(t *testing.T) {
		t.Parallel()

		h := newServiceHarness(t, &fakeRepo{}, nil, controller.SafetyPolicy{}, 20)

		require.Error(t, h.svc.Ping(t.Context()))
	})

	t.Run("after ready returns nil", func(t *testing.T) {
		t.Parallel()

		h := newServiceHarness(t, &fakeRepo{}, nil, controller.SafetyPolicy{}, 20)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		require.NoError(t, h.svc.Start(ctx))

		select {
		case <-h.svc.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("service did not become ready")
		}

		// The first cycle must complete before Ping reports healthy.
		require.Eventually(t, func() bool {
			return h.svc.Ping(context.Background()) == nil
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
	})
}
