package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opsremedy/remedy-controller/internal/infra/metrics"
)

// Collector queries the cluster for workload state across watched namespaces
// and classifies each resource into health issues. Read-only against the
// platform: a query failure in one namespace yields partial results, not an
// aborted cycle.
type Collector struct {
	logger           *slog.Logger
	repo             Repository
	restartThreshold int32
	pendingGrace     time.Duration
	logTailLines     int64
	maxWorkers       int
	now              func() time.Time
}

// NewCollector creates a health collector.
func NewCollector(
	logger *slog.Logger,
	repo Repository,
	restartThreshold int32,
	pendingGrace time.Duration,
	logTailLines int64,
) *Collector {
	return &Collector{
		logger:           logger,
		repo:             repo,
		restartThreshold: restartThreshold,
		pendingGrace:     pendingGrace,
		logTailLines:     logTailLines,
		maxWorkers:       4,
		now:              time.Now,
	}
}

type namespaceResult struct {
	issues []Issue
	err    error
}

// Collect returns the current cycle's issues, ordered by namespace/name/kind
// so processing order is reproducible for a given cluster state. Namespace
// queries run on a bounded fan-out; per-namespace failures come back as
// collect-error strings. The returned error is non-nil only for the fatal
// class (credentials rejected by the platform).
func (c *Collector) Collect(ctx context.Context, namespaces []string) ([]Issue, []string, error) {
	results := make([]namespaceResult, len(namespaces))
	sem := make(chan struct{}, c.maxWorkers)

	var wg sync.WaitGroup

	for i, ns := range namespaces {
		wg.Add(1)

		go func(i int, ns string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			issues, err := c.collectNamespace(ctx, ns)
			results[i] = namespaceResult{issues: issues, err: err}
		}(i, ns)
	}

	wg.Wait()

	var (
		issues      []Issue
		collectErrs []string
	)

	for i, res := range results {
		if res.err != nil {
			var target unauthorized
			if errors.As(res.err, &target) {
				return nil, nil, fmt.Errorf("%w: %w", ErrPlatformUnavailable, res.err)
			}

			c.logger.ErrorContext(ctx, "namespace collection failed",
				"namespace", namespaces[i],
				"reason", res.err,
			)
			metrics.RecordCollectError(namespaces[i])
			collectErrs = append(collectErrs, fmt.Sprintf("%s: %v", namespaces[i], res.err))

			continue
		}

		issues = append(issues, res.issues...)
	}

	sort.Slice(issues, func(a, b int) bool {
		ia, ib := issues[a], issues[b]
		if ia.Resource.Namespace != ib.Resource.Namespace {
			return ia.Resource.Namespace < ib.Resource.Namespace
		}
		if ia.Resource.Name != ib.Resource.Name {
			return ia.Resource.Name < ib.Resource.Name
		}

		return ia.Kind < ib.Kind
	})

	for _, issue := range issues {
		metrics.RecordIssueDetected(string(issue.Kind))
	}

	return issues, collectErrs, nil
}

func (c *Collector) collectNamespace(ctx context.Context, namespace string) ([]Issue, error) {
	pods, err := c.repo.ListPodsQuery(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	var issues []Issue

	for i := range pods {
		issues = append(issues, c.classifyPod(ctx, pods[i])...)
	}

	return issues, nil
}

// classifyPod evaluates every classification rule independently; multiple
// rules may fire and each fires as its own issue.
func (c *Collector) classifyPod(ctx context.Context, pod PodStatus) []Issue {
	type finding struct {
		kind      IssueKind
		container string
	}

	var findings []finding

	for _, cs := range pod.Containers {
		if cs.LastTerminationReason == reasonOOMKilled {
			findings = append(findings, finding{kind: IssueOOMKilled, container: cs.Name})
		}

		if cs.WaitingReason == reasonCrashLoopBackOff {
			findings = append(findings, finding{kind: IssueCrashLoopBackOff, container: cs.Name})
		}

		if cs.RestartCount > c.restartThreshold {
			findings = append(findings, finding{kind: IssueHighRestartCount, container: cs.Name})
		}
	}

	if kind, ok := c.classifyPhase(pod); ok {
		findings = append(findings, finding{kind: kind})
	}

	if len(findings) == 0 {
		return nil
	}

	resource := toWatchedResource(pod)
	evidence := c.gatherEvidence(ctx, pod)
	detectedAt := c.now()

	issues := make([]Issue, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, Issue{
			Resource:   resource,
			Kind:       f.kind,
			Severity:   severityFor(f.kind),
			Container:  f.container,
			DetectedAt: detectedAt,
			Evidence:   evidence,
		})
	}

	return issues
}

// classifyPhase flags Failed immediately; Pending only beyond the grace
// period, so ordinary scheduling latency is not an anomaly.
func (c *Collector) classifyPhase(pod PodStatus) (IssueKind, bool) {
	switch pod.Phase {
	case phaseRunning, phaseSucceeded:
		return "", false
	case phasePending:
		// A pod the kubelet never admitted has no start time; anchor the
		// grace check on its creation timestamp so unschedulable pods
		// still age into an issue.
		anchor := pod.StartTime
		if anchor.IsZero() {
			anchor = pod.CreatedAt
		}

		if anchor.IsZero() || c.now().Sub(anchor) < c.pendingGrace {
			return "", false
		}

		return IssueNotRunning, true
	default:
		// Failed or Unknown.
		return IssueNotRunning, true
	}
}

// gatherEvidence is best-effort: a missing log stream or absent metrics never
// blocks detection.
func (c *Collector) gatherEvidence(ctx context.Context, pod PodStatus) Evidence {
	evidence := Evidence{SpecDigest: pod.SpecDigest}

	logs, err := c.repo.GetPodLogsQuery(ctx, pod.Namespace, pod.Name, c.logTailLines)
	if err != nil {
		c.logger.WarnContext(ctx, "could not fetch pod logs",
			"pod", pod.Name, "namespace", pod.Namespace, "reason", err)
	} else {
		evidence.LogExcerpt = logs
	}

	events, err := c.repo.ListPodEventsQuery(ctx, pod.Namespace, pod.Name)
	if err != nil {
		c.logger.WarnContext(ctx, "could not fetch pod events",
			"pod", pod.Name, "namespace", pod.Namespace, "reason", err)
	} else {
		evidence.Events = events
	}

	usage, err := c.repo.GetPodMemoryUsageQuery(ctx, pod.Namespace, pod.Name)
	if err != nil {
		var target notFound
		if !errors.As(err, &target) {
			c.logger.WarnContext(ctx, "could not fetch pod memory usage",
				"pod", pod.Name, "namespace", pod.Namespace, "reason", err)
		}
	} else {
		evidence.MemoryUsage = usage
	}

	return evidence
}

func toWatchedResource(pod PodStatus) WatchedResource {
	out := WatchedResource{
		ResourceRef: ResourceRef{
			Namespace: pod.Namespace,
			Kind:      ResourceKindPod,
			Name:      pod.Name,
			UID:       pod.UID,
		},
		Phase:          pod.Phase,
		Reason:         pod.Reason,
		LastTransition: pod.StartTime,
	}

	for _, cs := range pod.Containers {
		if cs.RestartCount > out.RestartCount {
			out.RestartCount = cs.RestartCount
		}

		if cs.LastTransition.After(out.LastTransition) {
			out.LastTransition = cs.LastTransition
		}
	}

	return out
}
