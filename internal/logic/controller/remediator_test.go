package controller_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

func qty(s string) *resource.Quantity {
	q := resource.MustParse(s)

	return &q
}

func testRemediationConfig() controller.RemediationConfig {
	return controller.RemediationConfig{
		LimitFactor:   1.5,
		MemoryCeiling: resource.MustParse("4Gi"),
		CPUCeiling:    resource.MustParse("4"),
		ScaleStep:     1,
		MinReplicas:   1,
		MaxReplicas:   10,
	}
}

func podIssue(kind controller.IssueKind) controller.Issue {
	return controller.Issue{
		Resource: controller.WatchedResource{
			ResourceRef: controller.ResourceRef{
				Namespace: "default",
				Kind:      controller.ResourceKindPod,
				Name:      "web-1-abc123",
				UID:       "uid-1",
			},
		},
		Kind:     kind,
		Severity: controller.SeverityCritical,
	}
}

func TestRemediator_Execute_IncreaseLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		giveLimits *controller.DeploymentLimits
		wantMemory string
		wantCPU    string
	}{
		{
			name:       "scales existing limits by factor",
			giveLimits: &controller.DeploymentLimits{Memory: qty("1Gi"), CPU: qty("1")},
			wantMemory: "1536Mi",
			wantCPU:    "1500m",
		},
		{
			name:       "no limits start from defaults",
			giveLimits: &controller.DeploymentLimits{},
			wantMemory: "256Mi",
			wantCPU:    "250m",
		},
		{
			name:       "ceiling clamps escalation",
			giveLimits: &controller.DeploymentLimits{Memory: qty("3Gi"), CPU: qty("3")},
			wantMemory: "4Gi",
			wantCPU:    "4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &fakeRepo{
				resolveFn: func(_ context.Context, _, _ string) (string, error) {
					return "web", nil
				},
				getLimitsFn: func(_ context.Context, _, _ string) (*controller.DeploymentLimits, error) {
					return tt.giveLimits, nil
				},
			}

			ledger := controller.NewLedger(time.Minute, 20)
			remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

			rec := remediator.Execute(t.Context(), podIssue(controller.IssueOOMKilled), controller.Diagnosis{
				Action: controller.ActionIncreaseLimits,
			})

			require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
			require.Len(t, repo.setLimitsCalls, 1)

			applied := repo.setLimitsCalls[0]
			require.Zero(t, applied.Memory.Cmp(resource.MustParse(tt.wantMemory)))
			require.Zero(t, applied.CPU.Cmp(resource.MustParse(tt.wantCPU)))
		})
	}
}

func TestRemediator_Execute_IncreaseLimits_NoOwner(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		resolveFn: func(_ context.Context, _, _ string) (string, error) {
			return "", errors.New("pod has no replicaset owner")
		},
	}

	ledger := controller.NewLedger(time.Minute, 20)
	remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

	rec := remediator.Execute(t.Context(), podIssue(controller.IssueOOMKilled), controller.Diagnosis{
		Action: controller.ActionIncreaseLimits,
	})

	require.Equal(t, controller.OutcomeFailed, rec.Outcome)
	require.NotEmpty(t, rec.Error)
	require.Empty(t, repo.setLimitsCalls)
}

func TestRemediator_Execute_DeletePod_UsesUID(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	ledger := controller.NewLedger(time.Minute, 20)
	remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

	rec := remediator.Execute(t.Context(), podIssue(controller.IssueCrashLoopBackOff), controller.Diagnosis{
		Action: controller.ActionDeletePod,
	})

	require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
	require.Equal(t, []string{"default/web-1-abc123/uid-1"}, repo.deletedPods)
}

func TestRemediator_Execute_RestartDeployment(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		resolveFn: func(_ context.Context, _, _ string) (string, error) {
			return "web", nil
		},
	}

	ledger := controller.NewLedger(time.Minute, 20)
	remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

	rec := remediator.Execute(t.Context(), podIssue(controller.IssueNotRunning), controller.Diagnosis{
		Action: controller.ActionRestartDeployment,
	})

	require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
	require.Equal(t, []string{"default/web"}, repo.restarted)
}

func TestRemediator_Execute_ScaleDeployment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		giveReplicas int32
		wantScaledTo []int32
	}{
		{
			name:         "scales up by step",
			giveReplicas: 3,
			wantScaledTo: []int32{4},
		},
		{
			name:         "at max is a no-op",
			giveReplicas: 10,
			wantScaledTo: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &fakeRepo{
				resolveFn: func(_ context.Context, _, _ string) (string, error) {
					return "web", nil
				},
				getReplicasFn: func(_ context.Context, _, _ string) (int32, error) {
					return tt.giveReplicas, nil
				},
			}

			ledger := controller.NewLedger(time.Minute, 20)
			remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

			rec := remediator.Execute(t.Context(), podIssue(controller.IssueNotRunning), controller.Diagnosis{
				Action: controller.ActionScaleDeployment,
			})

			require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
			require.Equal(t, tt.wantScaledTo, repo.scaledTo)
		})
	}
}

func TestRemediator_Execute_DeploymentKindSkipsResolution(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		resolveFn: func(_ context.Context, _, _ string) (string, error) {
			t.Fatal("resolve must not be called for deployment issues")

			return "", nil
		},
	}

	ledger := controller.NewLedger(time.Minute, 20)
	remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

	issue := podIssue(controller.IssueNotRunning)
	issue.Resource.Kind = controller.ResourceKindDeployment
	issue.Resource.Name = "web"

	rec := remediator.Execute(t.Context(), issue, controller.Diagnosis{
		Action: controller.ActionRestartDeployment,
	})

	require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
	require.Equal(t, []string{"default/web"}, repo.restarted)
}

func TestRemediator_Execute_LedgerUpdates(t *testing.T) {
	t.Parallel()

	t.Run("success records action", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{}
		ledger := controller.NewLedger(time.Minute, 20)
		remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

		issue := podIssue(controller.IssueCrashLoopBackOff)
		remediator.Execute(t.Context(), issue, controller.Diagnosis{Action: controller.ActionDeletePod})

		_, cooling := ledger.InCooldown(issue.Resource.Key())
		require.True(t, cooling)
		require.Equal(t, 1, ledger.Summary().ActionsLastHour)
	})

	t.Run("failure leaves ledger untouched", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{
			deletePodFn: func(_ context.Context, _, _, _ string) error {
				return errors.New("conflict: uid mismatch")
			},
		}

		ledger := controller.NewLedger(time.Minute, 20)
		remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

		issue := podIssue(controller.IssueCrashLoopBackOff)
		rec := remediator.Execute(t.Context(), issue, controller.Diagnosis{Action: controller.ActionDeletePod})

		require.Equal(t, controller.OutcomeFailed, rec.Outcome)

		_, cooling := ledger.InCooldown(issue.Resource.Key())
		require.False(t, cooling)
		require.Equal(t, 0, ledger.Summary().ActionsLastHour)
	})

	t.Run("noop still consumes budget", func(t *testing.T) {
		t.Parallel()

		repo := &fakeRepo{}
		ledger := controller.NewLedger(time.Minute, 20)
		remediator := controller.NewRemediator(slog.Default(), repo, ledger, testRemediationConfig())

		issue := podIssue(controller.IssueOOMKilled)
		rec := remediator.Execute(t.Context(), issue, controller.Diagnosis{Action: controller.ActionNoOp})

		require.Equal(t, controller.OutcomeSucceeded, rec.Outcome)
		require.Equal(t, 1, ledger.Summary().ActionsLastHour)
	})
}
