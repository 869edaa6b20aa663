package controller

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Repository is the port interface for cluster resource-management operations.
// Implementations are provided by adapters in the outbound layer.
type Repository interface {
	// Queries (read-only, used by the collector and for evidence gathering).
	ListPodsQuery(ctx context.Context, namespace string) ([]PodStatus, error)
	GetPodLogsQuery(ctx context.Context, namespace, name string, tailLines int64) (string, error)
	ListPodEventsQuery(ctx context.Context, namespace, name string) ([]Event, error)
	GetPodMemoryUsageQuery(ctx context.Context, namespace, name string) (string, error)
	ResolveDeploymentQuery(ctx context.Context, namespace, podName string) (string, error)
	GetDeploymentLimitsQuery(ctx context.Context, namespace, name string) (*DeploymentLimits, error)
	GetDeploymentReplicasQuery(ctx context.Context, namespace, name string) (int32, error)

	// Commands (cluster mutations, used by the remediation engine only).
	SetDeploymentLimitsCommand(ctx context.Context, namespace, name string, limits DeploymentLimits) error
	RestartDeploymentCommand(ctx context.Context, namespace, name string, restartedAt time.Time) error
	ScaleDeploymentCommand(ctx context.Context, namespace, name string, replicas int32) error
	DeletePodCommand(ctx context.Context, namespace, name, uid string) error
}

// DeploymentLimits carries per-container resource limits aggregated for a deployment.
// Nil quantities mean the limit is not set.
type DeploymentLimits struct {
	Memory *resource.Quantity
	CPU    *resource.Quantity
}

// Oracle is the port interface for the external reasoning service.
type Oracle interface {
	Analyze(ctx context.Context, req OracleRequest) (*OracleResponse, error)
}

// OracleRequest carries one issue and its capped evidence to the oracle.
type OracleRequest struct {
	IssueKind IssueKind
	Resource  ResourceRef
	Evidence  string
}

// OracleResponse is the oracle's raw answer before vocabulary validation.
type OracleResponse struct {
	RootCause string
	Action    string
}

// AuditSink receives every ActionRecord, append-only.
type AuditSink interface {
	Append(ctx context.Context, rec ActionRecord) error
}

// Publisher receives the immutable snapshot at the end of each cycle.
type Publisher interface {
	PublishCycle(snap CycleSnapshot)
}

// WindowChecker reports whether mutations are allowed at a given time.
type WindowChecker interface {
	Contains(t time.Time) bool
}

// notFound marks adapter "not found" errors without import coupling.
type notFound interface {
	IsNotFound()
}

// unauthorized marks adapter credential/authorization failures; these are the
// only fatal error class for the loop.
type unauthorized interface {
	IsUnauthorized()
}
