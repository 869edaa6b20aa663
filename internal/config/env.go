package config

import "time"

// Env key constants. All controller configuration env vars use the REMEDY_
// prefix; duration values use explicit units (e.g. 30s, 5m, 1h).

// Path to kubeconfig file. If unset, KUBECONFIG is used as fallback.
const envKeyKubeConfig = "REMEDY_KUBECONFIG"

// Kubernetes API server URL. If unset, KUBERNETES_MASTER is used as fallback.
const envKeyKubeMaster = "REMEDY_KUBE_MASTER"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "REMEDY_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "REMEDY_LOG_FORMAT"

// Port for the status/health HTTP server.
const envKeyHTTPPort = "REMEDY_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "REMEDY_METRICS_PORT"

// Check interval between control-loop cycles.
const (
	envKeyInterval = "REMEDY_INTERVAL"
	envMinInterval = 5 * time.Second
)

// Comma-separated list of watched namespaces.
const envKeyNamespaces = "REMEDY_NAMESPACES"

// Comma-separated list of namespaces the governor must never touch.
const envKeyExcludedNamespaces = "REMEDY_EXCLUDED_NAMESPACES"

// When true, actions are evaluated and recorded but never executed.
const envKeyDryRun = "REMEDY_DRY_RUN"

// Minimum time between consecutive actions on the same resource.
const envKeyCooldown = "REMEDY_COOLDOWN"

// Maximum number of executed actions in any trailing hour, global.
const envKeyMaxActionsPerHour = "REMEDY_MAX_ACTIONS_PER_HOUR"

// Restart count above which HighRestartCount fires.
const envKeyRestartThreshold = "REMEDY_RESTART_THRESHOLD"

// How long a Pending pod is tolerated before NotRunning fires.
const envKeyPendingGrace = "REMEDY_PENDING_GRACE"

// Number of log lines fetched into the evidence bundle.
const envKeyLogTailLines = "REMEDY_LOG_TAIL_LINES"

// Reasoning-oracle model identifier. The API key comes from OPENAI_API_KEY;
// when the key is empty the oracle is disabled and the static fallback table
// serves all diagnoses.
const (
	envKeyOracleModel            = "REMEDY_ORACLE_MODEL"
	envKeyOracleTimeout          = "REMEDY_ORACLE_TIMEOUT"
	envKeyOracleMaxEvidenceBytes = "REMEDY_ORACLE_MAX_EVIDENCE_BYTES"
	envKeyOracleAPIKey           = "OPENAI_API_KEY"
)

// Multiplicative factor applied to deployment limits on IncreaseLimits, and
// the ceilings that cap the escalation.
const (
	envKeyLimitIncreaseFactor = "REMEDY_LIMIT_INCREASE_FACTOR"
	envKeyMemoryLimitCeiling  = "REMEDY_MEMORY_LIMIT_CEILING"
	envKeyCPULimitCeiling     = "REMEDY_CPU_LIMIT_CEILING"
)

// Replica delta and bounds for ScaleDeployment.
const (
	envKeyScaleStep   = "REMEDY_SCALE_STEP"
	envKeyMinReplicas = "REMEDY_MIN_REPLICAS"
	envKeyMaxReplicas = "REMEDY_MAX_REPLICAS"
)

// Optional maintenance window: cron spec for window start, window length, and
// IANA timezone. Empty schedule means remediation is always allowed.
const (
	envKeyMaintenanceSchedule = "REMEDY_MAINTENANCE_SCHEDULE"
	envKeyMaintenanceDuration = "REMEDY_MAINTENANCE_DURATION"
	envKeyMaintenanceTZ       = "REMEDY_MAINTENANCE_TZ"
)

// Incident log file path (JSONL, append-only).
const envKeyIncidentLog = "REMEDY_INCIDENT_LOG"

// Optional Postgres DSN for the audit trail. Empty disables the database sink.
const envKeyDatabaseURL = "REMEDY_DATABASE_URL"

// Optional YAML policy file overriding the safety policy.
const envKeyPolicyFile = "REMEDY_POLICY_FILE"

// Standard k8s env keys used as fallback when REMEDY_* are unset.
const (
	envKeyKubeConfigFallback = "KUBECONFIG"
	envKeyKubeMasterFallback = "KUBERNETES_MASTER"
)
