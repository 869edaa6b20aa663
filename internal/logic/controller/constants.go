package controller

// IssueKind classifies a detected anomaly.
type IssueKind string

const (
	IssueOOMKilled        IssueKind = "OOMKilled"
	IssueCrashLoopBackOff IssueKind = "CrashLoopBackOff"
	IssueHighRestartCount IssueKind = "HighRestartCount"
	IssueNotRunning       IssueKind = "NotRunning"
)

// Severity of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// ActionKind is a remediation category from the constrained vocabulary.
type ActionKind string

const (
	ActionIncreaseLimits    ActionKind = "IncreaseLimits"
	ActionDeletePod         ActionKind = "DeletePod"
	ActionRestartDeployment ActionKind = "RestartDeployment"
	ActionScaleDeployment   ActionKind = "ScaleDeployment"
	ActionNoOp              ActionKind = "NoOp"
)

// ParseActionKind maps a free-form token to an ActionKind.
// Anything outside the vocabulary maps to NoOp.
func ParseActionKind(token string) ActionKind {
	switch ActionKind(token) {
	case ActionIncreaseLimits, ActionDeletePod, ActionRestartDeployment, ActionScaleDeployment, ActionNoOp:
		return ActionKind(token)
	default:
		return ActionNoOp
	}
}

// Decision is the safety governor's verdict for a proposed action.
type Decision string

const (
	DecisionProceed       Decision = "proceed"
	DecisionSkipExcluded  Decision = "skip-excluded"
	DecisionSkipDryRun    Decision = "skip-dry-run"
	DecisionSkipWindow    Decision = "skip-window"
	DecisionSkipCooldown  Decision = "skip-cooldown"
	DecisionSkipRateLimit Decision = "skip-rate-limit"
)

// Outcome of one execution attempt.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkippedThrottled Outcome = "skipped-throttled"
	OutcomeSkippedCooldown  Outcome = "skipped-cooldown"
	OutcomeSkippedExcluded  Outcome = "skipped-excluded"
	OutcomeSkippedDryRun    Outcome = "skipped-dry-run"
	OutcomeSkippedWindow    Outcome = "skipped-window"
)

// skipOutcomes maps a veto decision to its recorded outcome.
var skipOutcomes = map[Decision]Outcome{
	DecisionSkipExcluded:  OutcomeSkippedExcluded,
	DecisionSkipDryRun:    OutcomeSkippedDryRun,
	DecisionSkipWindow:    OutcomeSkippedWindow,
	DecisionSkipCooldown:  OutcomeSkippedCooldown,
	DecisionSkipRateLimit: OutcomeSkippedThrottled,
}

// fallbackActions is the static rule table applied when the oracle is
// unavailable or returns garbage. The loop stays operable without the oracle.
var fallbackActions = map[IssueKind]ActionKind{
	IssueOOMKilled:        ActionIncreaseLimits,
	IssueCrashLoopBackOff: ActionDeletePod,
	IssueHighRestartCount: ActionDeletePod,
	IssueNotRunning:       ActionRestartDeployment,
}

// severityFor returns the severity the collector assigns to an issue kind.
func severityFor(kind IssueKind) Severity {
	switch kind {
	case IssueOOMKilled, IssueCrashLoopBackOff:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

const (
	// reasonOOMKilled is the container termination reason for memory-limit kills.
	reasonOOMKilled = "OOMKilled"
	// reasonCrashLoopBackOff is the container waiting reason for repeated failed restarts.
	reasonCrashLoopBackOff = "CrashLoopBackOff"

	phaseRunning   = "Running"
	phaseSucceeded = "Succeeded"
	phaseFailed    = "Failed"
	phasePending   = "Pending"
)
