package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cyclesTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "remedy_cycles_total",
		Help: "Total number of control-loop cycles started.",
	},
)

var collectErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "remedy_collect_errors_total",
		Help: "Total number of per-namespace collection failures (non-fatal).",
	},
	[]string{"namespace"},
)

var issuesTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "remedy_issues_detected_total",
		Help: "Total number of health issues detected, by issue kind.",
	},
	[]string{"kind"},
)

var actionsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "remedy_actions_total",
		Help: "Total number of action records produced, by action kind and outcome.",
	},
	[]string{"action", "outcome"},
)

var oracleFallbacksTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "remedy_oracle_fallback_total",
		Help: "Total number of diagnoses served by the static rule table instead of the oracle.",
	},
	[]string{"reason"},
)

// RecordCycle increments the cycle counter at the start of each cycle.
func RecordCycle() {
	cyclesTotal.Inc()
}

// RecordCollectError increments the counter for a failed namespace query.
func RecordCollectError(namespace string) {
	collectErrorsTotal.WithLabelValues(namespace).Inc()
}

// RecordIssueDetected increments the issue counter for a kind.
func RecordIssueDetected(kind string) {
	issuesTotal.WithLabelValues(kind).Inc()
}

// RecordAction increments the action counter for a kind/outcome pair.
func RecordAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordOracleFallback increments the fallback counter with the trigger reason.
func RecordOracleFallback(reason string) {
	oracleFallbacksTotal.WithLabelValues(reason).Inc()
}
