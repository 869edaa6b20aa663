package controller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/opsremedy/remedy-controller/internal/infra/metrics"
)

// RemediationConfig bounds what the remediation engine may do to the cluster.
type RemediationConfig struct {
	LimitFactor   float64
	MemoryCeiling resource.Quantity
	CPUCeiling    resource.Quantity
	ScaleStep     int32
	MinReplicas   int32
	MaxReplicas   int32
}

// Deployments with no limits yet start from these before escalation.
var (
	defaultMemoryLimit = resource.MustParse("256Mi")
	defaultCPULimit    = resource.MustParse("250m")
)

// Remediator maps an approved action category to a concrete cluster mutation.
// The ledger is updated only after an action actually executed: a failed
// mutation must not consume rate budget or silence future attempts.
type Remediator struct {
	logger *slog.Logger
	repo   Repository
	ledger *Ledger
	cfg    RemediationConfig
	now    func() time.Time
}

// NewRemediator creates a remediation engine.
func NewRemediator(logger *slog.Logger, repo Repository, ledger *Ledger, cfg RemediationConfig) *Remediator {
	return &Remediator{
		logger: logger,
		repo:   repo,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Execute runs the diagnosed action. Called only after the governor proceeds.
func (r *Remediator) Execute(ctx context.Context, issue Issue, diag Diagnosis) ActionRecord {
	rec := newActionRecord(issue, diag, r.now())
	logger := r.logger.With(
		"action", diag.Action,
		"resource", issue.Resource.Key(),
	)

	detail, err := r.run(ctx, issue, diag)
	if err != nil {
		logger.ErrorContext(ctx, "remediation failed", "reason", err)

		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		metrics.RecordAction(string(diag.Action), string(OutcomeFailed))

		return rec
	}

	r.ledger.RecordAction(issue.Resource.Key())

	rec.Outcome = OutcomeSucceeded
	rec.Detail = detail
	metrics.RecordAction(string(diag.Action), string(OutcomeSucceeded))

	logger.InfoContext(ctx, "remediation executed", "detail", detail)

	return rec
}

func (r *Remediator) run(ctx context.Context, issue Issue, diag Diagnosis) (string, error) {
	switch diag.Action {
	case ActionIncreaseLimits:
		return r.increaseLimits(ctx, issue)
	case ActionDeletePod:
		return r.deletePod(ctx, issue)
	case ActionRestartDeployment:
		return r.restartDeployment(ctx, issue)
	case ActionScaleDeployment:
		return r.scaleDeployment(ctx, issue)
	case ActionNoOp:
		return "no mutation performed", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, diag.Action)
	}
}

// increaseLimits escalates the owning deployment's limits by the configured
// factor. Repeated application keeps escalating on purpose; the ceiling stops
// unbounded growth.
func (r *Remediator) increaseLimits(ctx context.Context, issue Issue) (string, error) {
	deployment, err := r.owningDeployment(ctx, issue)
	if err != nil {
		return "", err
	}

	current, err := r.repo.GetDeploymentLimitsQuery(ctx, issue.Resource.Namespace, deployment)
	if err != nil {
		return "", fmt.Errorf("get deployment limits: %w", err)
	}

	memory := defaultMemoryLimit
	if current.Memory != nil {
		memory = scaleQuantity(*current.Memory, r.cfg.LimitFactor, resource.BinarySI)
	}

	cpu := defaultCPULimit
	if current.CPU != nil {
		cpu = scaleQuantity(*current.CPU, r.cfg.LimitFactor, resource.DecimalSI)
	}

	memory = clampQuantity(memory, r.cfg.MemoryCeiling)
	cpu = clampQuantity(cpu, r.cfg.CPUCeiling)

	limits := DeploymentLimits{Memory: &memory, CPU: &cpu}

	err = r.repo.SetDeploymentLimitsCommand(ctx, issue.Resource.Namespace, deployment, limits)
	if err != nil {
		return "", fmt.Errorf("set deployment limits: %w", err)
	}

	return fmt.Sprintf("deployment %s limits set to memory=%s cpu=%s",
		deployment, memory.String(), cpu.String()), nil
}

// deletePod targets the exact pod identity captured at detection time. The UID
// precondition makes the delete fail if a different pod with the same name
// appeared in between.
func (r *Remediator) deletePod(ctx context.Context, issue Issue) (string, error) {
	err := r.repo.DeletePodCommand(
		ctx,
		issue.Resource.Namespace,
		issue.Resource.Name,
		issue.Resource.UID,
	)
	if err != nil {
		return "", fmt.Errorf("delete pod: %w", err)
	}

	return fmt.Sprintf("pod %s deleted, controller will recreate it", issue.Resource.Key()), nil
}

func (r *Remediator) restartDeployment(ctx context.Context, issue Issue) (string, error) {
	deployment, err := r.owningDeployment(ctx, issue)
	if err != nil {
		return "", err
	}

	err = r.repo.RestartDeploymentCommand(ctx, issue.Resource.Namespace, deployment, r.now())
	if err != nil {
		return "", fmt.Errorf("restart deployment: %w", err)
	}

	return fmt.Sprintf("deployment %s rolling restart triggered", deployment), nil
}

func (r *Remediator) scaleDeployment(ctx context.Context, issue Issue) (string, error) {
	deployment, err := r.owningDeployment(ctx, issue)
	if err != nil {
		return "", err
	}

	current, err := r.repo.GetDeploymentReplicasQuery(ctx, issue.Resource.Namespace, deployment)
	if err != nil {
		return "", fmt.Errorf("get deployment replicas: %w", err)
	}

	target := current + r.cfg.ScaleStep
	if target > r.cfg.MaxReplicas {
		target = r.cfg.MaxReplicas
	}

	if target < r.cfg.MinReplicas {
		target = r.cfg.MinReplicas
	}

	if target == current {
		return fmt.Sprintf("deployment %s already at replica bound %d", deployment, current), nil
	}

	err = r.repo.ScaleDeploymentCommand(ctx, issue.Resource.Namespace, deployment, target)
	if err != nil {
		return "", fmt.Errorf("scale deployment: %w", err)
	}

	return fmt.Sprintf("deployment %s scaled %d -> %d", deployment, current, target), nil
}

func (r *Remediator) owningDeployment(ctx context.Context, issue Issue) (string, error) {
	if issue.Resource.Kind == ResourceKindDeployment {
		return issue.Resource.Name, nil
	}

	deployment, err := r.repo.ResolveDeploymentQuery(ctx, issue.Resource.Namespace, issue.Resource.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoOwningDeployment, err)
	}

	return deployment, nil
}

// scaleQuantity multiplies a quantity in milli-units, rounding up.
func scaleQuantity(q resource.Quantity, factor float64, format resource.Format) resource.Quantity {
	milli := int64(math.Ceil(float64(q.MilliValue()) * factor))

	return *resource.NewMilliQuantity(milli, format)
}

func clampQuantity(q, ceiling resource.Quantity) resource.Quantity {
	if q.Cmp(ceiling) > 0 {
		return ceiling
	}

	return q
}
