package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opsremedy/remedy-controller/internal/infra/metrics"
)

// CyclePhase is the orchestrator's position in the per-cycle state machine.
type CyclePhase string

const (
	PhaseIdle        CyclePhase = "idle"
	PhaseCollecting  CyclePhase = "collecting"
	PhaseDiagnosing  CyclePhase = "diagnosing"
	PhaseAuthorizing CyclePhase = "authorizing"
	PhaseExecuting   CyclePhase = "executing"
	PhasePublishing  CyclePhase = "publishing"
)

// executeTimeout bounds a single mutation once it is in flight. An authorized
// action always runs to completion; shutdown is only honored between issues.
const executeTimeout = 30 * time.Second

// Service is the process-wide driver: on a fixed interval it collects health,
// routes anomalies through diagnosis and authorization, dispatches approved
// actions, and publishes the cycle snapshot. Cycles never overlap, which keeps
// the ledger's temporal reasoning race-free without locking.
type Service struct {
	logger     *slog.Logger
	collector  *Collector
	diagnoser  *Diagnoser
	governor   *Governor
	remediator *Remediator
	ledger     *Ledger
	audit      AuditSink
	publisher  Publisher
	namespaces []string
	interval   time.Duration
	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
	mu         sync.RWMutex
	phase      CyclePhase
	lastCycle  time.Time
	runErr     error
}

// New creates the orchestrator service.
func New(
	logger *slog.Logger,
	collector *Collector,
	diagnoser *Diagnoser,
	governor *Governor,
	remediator *Remediator,
	ledger *Ledger,
	audit AuditSink,
	publisher Publisher,
	namespaces []string,
	interval time.Duration,
) *Service {
	return &Service{
		logger:     logger,
		collector:  collector,
		diagnoser:  diagnoser,
		governor:   governor,
		remediator: remediator,
		ledger:     ledger,
		audit:      audit,
		publisher:  publisher,
		namespaces: namespaces,
		interval:   interval,
		ready:      make(chan struct{}),
		doneCh:     make(chan struct{}),
		phase:      PhaseIdle,
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "remediation service is shutting down, skipping start")

		return nil
	}

	go func() {
		if err := s.RunCommand(ctx); err != nil {
			s.logger.ErrorContext(ctx, "remediation loop halted", "reason", err)
		}
	}()

	return nil
}

// Name returns the name of the service component.
func (s *Service) Name() string {
	return "remedy-controller"
}

func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		lastCycleAge := s.getLastCycleAge()
		if lastCycleAge > 2*s.interval {
			return fmt.Errorf("last cycle was too long ago: %s", lastCycleAge.Round(time.Second).String())
		}

		return nil
	default:
		return fmt.Errorf("remediation service is not ready")
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the remediation loop has exited, whether by context
// cancellation or a fatal platform error.
func (s *Service) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the fatal error that halted the remediation loop, if any. Valid
// only after Done is closed.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.runErr
}

func (s *Service) setRunErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runErr = err
}

func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "remediation service is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "remediation service shut downed")
	}()

	s.logger.InfoContext(ctx, "shutting down remediation service")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before remediation loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "remediation loop exited")
	}

	return nil
}

// RunCommand runs the control loop on the configured interval until the
// context is cancelled or a fatal platform error occurs.
func (s *Service) RunCommand(ctx context.Context) error {
	defer close(s.doneCh)

	logger := s.logger.With("controller", "RunCommand")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	close(s.ready)

	for {
		err := s.CycleCommand(ctx)
		if err != nil {
			// The only fatal class: the platform rejected our credentials.
			logger.ErrorContext(ctx, "cycle failed fatally", "reason", err)
			s.setRunErr(err)

			return err
		}

		s.setLastCycleEnd()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.InfoContext(ctx, "terminating remediation loop")

			return nil
		}
	}
}

// CycleCommand runs one detect -> diagnose -> decide -> act cycle. Issues are
// processed strictly sequentially; shutdown is checked between issues, never
// between micro-steps of a single action.
func (s *Service) CycleCommand(ctx context.Context) error {
	logger := s.logger.With("controller", "CycleCommand")

	metrics.RecordCycle()

	s.setPhase(PhaseCollecting)
	defer s.setPhase(PhaseIdle)

	issues, collectErrs, err := s.collector.Collect(ctx, s.namespaces)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	logger.InfoContext(ctx, "cycle collected", "issues", len(issues), "collectErrors", len(collectErrs))

	records := make([]ActionRecord, 0, len(issues))

	for i := range issues {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "context done, stopping cycle between issues")
			s.publish(issues, records, collectErrs)

			return nil
		default:
		}

		records = append(records, s.processIssue(ctx, issues[i]))
	}

	s.publish(issues, records, collectErrs)

	return nil
}

// processIssue yields exactly one ActionRecord per issue, skip outcomes
// included. Nothing drops silently.
func (s *Service) processIssue(ctx context.Context, issue Issue) ActionRecord {
	logger := s.logger.With(
		"resource", issue.Resource.Key(),
		"issue", issue.Kind,
	)

	s.setPhase(PhaseDiagnosing)

	diag := s.diagnoser.Diagnose(ctx, issue)
	logger.InfoContext(ctx, "diagnosis",
		"action", diag.Action,
		"fromFallback", diag.FromFallback,
		"rootCause", diag.RootCause,
	)

	s.setPhase(PhaseAuthorizing)

	decision := s.governor.Authorize(issue)

	s.setPhase(PhaseExecuting)

	var rec ActionRecord

	if decision == DecisionProceed {
		// Once authorized, the mutation runs to completion even if shutdown
		// or the cycle deadline hits mid-flight.
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), executeTimeout)
		rec = s.remediator.Execute(execCtx, issue, diag)

		cancel()
	} else {
		rec = newActionRecord(issue, diag, time.Now())
		rec.Outcome = skipOutcomes[decision]
		rec.Detail = fmt.Sprintf("vetoed by safety governor: %s", decision)

		logger.InfoContext(ctx, "action vetoed", "decision", decision)
		metrics.RecordAction(string(diag.Action), string(rec.Outcome))
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), executeTimeout)
	defer cancel()

	if err := s.audit.Append(auditCtx, rec); err != nil {
		logger.ErrorContext(ctx, "audit append failed", "reason", err)
	}

	return rec
}

func (s *Service) publish(issues []Issue, records []ActionRecord, collectErrs []string) {
	s.setPhase(PhasePublishing)

	s.publisher.PublishCycle(CycleSnapshot{
		CompletedAt:   time.Now(),
		Issues:        issues,
		Records:       records,
		CollectErrors: collectErrs,
		Ledger:        s.ledger.Summary(),
	})
}

// Phase returns the orchestrator's current position in the cycle state machine.
func (s *Service) Phase() CyclePhase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.phase
}

func (s *Service) setPhase(phase CyclePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = phase
}

func (s *Service) getLastCycleAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.lastCycle)
}

func (s *Service) setLastCycleEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCycle = time.Now()
}
