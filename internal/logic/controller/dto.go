package controller

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies the kind of a watched workload unit.
type ResourceKind string

const (
	ResourceKindPod        ResourceKind = "pod"
	ResourceKindDeployment ResourceKind = "deployment"
)

// ResourceRef identifies a workload resource in the cluster.
type ResourceRef struct {
	Namespace string       `json:"namespace"`
	Kind      ResourceKind `json:"kind"`
	Name      string       `json:"name"`
	UID       string       `json:"uid,omitempty"`
}

// Key returns the ledger key for this resource.
func (r ResourceRef) Key() string {
	return r.Namespace + "/" + string(r.Kind) + "/" + r.Name
}

// WatchedResource is an immutable per-cycle snapshot of a workload's observed state.
type WatchedResource struct {
	ResourceRef
	Phase          string    `json:"phase"`
	Reason         string    `json:"reason,omitempty"`
	RestartCount   int32     `json:"restartCount"`
	LastTransition time.Time `json:"lastTransition"`
}

// PodStatus is the adapter-level view of a pod used for health classification.
type PodStatus struct {
	Name       string
	Namespace  string
	UID        string
	Phase      string
	Reason     string
	CreatedAt  time.Time
	StartTime  time.Time
	SpecDigest string
	Containers []ContainerStatus
}

// ContainerStatus holds the per-container fields the collector classifies on.
type ContainerStatus struct {
	Name                  string
	RestartCount          int32
	WaitingReason         string
	LastTerminationReason string
	LastTransition        time.Time
}

// Event is a cluster event attached to issue evidence.
type Event struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	Count    int32     `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// Evidence is the bundle of observations attached to an issue and
// forwarded (capped) to the reasoning oracle.
type Evidence struct {
	LogExcerpt  string  `json:"logExcerpt,omitempty"`
	Events      []Event `json:"events,omitempty"`
	MemoryUsage string  `json:"memoryUsage,omitempty"`
	SpecDigest  string  `json:"specDigest,omitempty"`
}

// Issue is a detected anomaly. Created by the collector, consumed within the
// same cycle; only the ledger remembers anything across cycles.
type Issue struct {
	Resource   WatchedResource `json:"resource"`
	Kind       IssueKind       `json:"kind"`
	Severity   Severity        `json:"severity"`
	Container  string          `json:"container,omitempty"`
	DetectedAt time.Time       `json:"detectedAt"`
	Evidence   Evidence        `json:"evidence"`
}

// Diagnosis is the diagnostic engine's output for one issue.
type Diagnosis struct {
	RootCause    string     `json:"rootCause"`
	Action       ActionKind `json:"action"`
	FromFallback bool       `json:"fromFallback"`
}

// ActionRecord is the immutable result of one execution attempt.
// Every issue produces exactly one record per cycle.
type ActionRecord struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Resource  ResourceRef `json:"resource"`
	IssueKind IssueKind   `json:"issueKind"`
	Severity  Severity    `json:"severity"`
	Action    ActionKind  `json:"action"`
	Outcome   Outcome     `json:"outcome"`
	RootCause string      `json:"rootCause,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func newActionRecord(issue Issue, diag Diagnosis, now time.Time) ActionRecord {
	return ActionRecord{
		ID:        uuid.NewString(),
		Timestamp: now,
		Resource:  issue.Resource.ResourceRef,
		IssueKind: issue.Kind,
		Severity:  issue.Severity,
		Action:    diag.Action,
		RootCause: diag.RootCause,
	}
}

// CycleSnapshot is the immutable per-cycle state published for external
// consumers. Readers never see the live ledger.
type CycleSnapshot struct {
	CompletedAt   time.Time      `json:"completedAt"`
	Issues        []Issue        `json:"issues"`
	Records       []ActionRecord `json:"records"`
	CollectErrors []string       `json:"collectErrors,omitempty"`
	Ledger        LedgerSummary  `json:"ledger"`
}
