package appstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

// State represents the application lifecycle state.
type State string

const (
	StateInit        State = "init"
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StateTerminating State = "terminating"
	StateTerminated  State = "terminated"
)

// recentLimit caps the recent-issues and recent-actions ring buffers.
const recentLimit = 50

// AppState holds the application lifecycle state plus the latest published
// cycle snapshot. The orchestrator loop writes here at cycle-publish time;
// HTTP handlers read immutable copies, never the live ledger.
type AppState struct {
	mu            sync.RWMutex
	logger        *slog.Logger
	startedAt     time.Time
	readyAt       *time.Time
	state         State
	dryRun        bool
	namespaces    []string
	cyclesTotal   uint64
	issuesTotal   uint64
	actionsTotal  uint64
	lastCycle     *controller.CycleSnapshot
	recentIssues  []controller.Issue
	recentActions []controller.ActionRecord
}

// New creates a new AppState.
func New(logger *slog.Logger, appStart time.Time, dryRun bool, namespaces []string) *AppState {
	return &AppState{
		logger:     logger,
		startedAt:  appStart,
		state:      StateInit,
		dryRun:     dryRun,
		namespaces: namespaces,
	}
}

var _ controller.Publisher = (*AppState)(nil)

// PublishCycle stores the cycle snapshot and rolls it into the counters and
// ring buffers.
func (s *AppState) PublishCycle(snap controller.CycleSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cyclesTotal++
	s.issuesTotal += uint64(len(snap.Issues))
	s.actionsTotal += uint64(len(snap.Records))

	s.recentIssues = appendBounded(s.recentIssues, snap.Issues)
	s.recentActions = appendBounded(s.recentActions, snap.Records)

	s.lastCycle = &snap
}

func appendBounded[T any](buf []T, items []T) []T {
	buf = append(buf, items...)
	if excess := len(buf) - recentLimit; excess > 0 {
		buf = buf[excess:]
	}

	return buf
}

// SetStarting transitions the state from Init to Starting.
func (s *AppState) SetStarting(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return fmt.Errorf("set starting: %w", ErrInvalidStateTransition)
	}

	return s.setState(StateStarting)
}

// SetRunning transitions the state from Starting to Running.
func (s *AppState) SetRunning(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarting {
		return fmt.Errorf("set running: %w", ErrInvalidStateTransition)
	}

	now := time.Now()
	s.readyAt = &now

	return s.setState(StateRunning)
}

// SetTerminating transitions the state to Terminating.
func (s *AppState) SetTerminating(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return fmt.Errorf("set terminating: %w", ErrAlreadyTerminated)
	}

	return s.setState(StateTerminating)
}

// SetTerminated marks the final state.
func (s *AppState) SetTerminated(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateTerminated

	return nil
}

func (s *AppState) setState(newState State) error {
	if s.state == StateTerminated {
		return fmt.Errorf("set state: %w", ErrAlreadyTerminated)
	}

	s.state = newState

	return nil
}

// GetState returns the current application state.
func (s *AppState) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// GetStartTime returns the time when the application started.
func (s *AppState) GetStartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.startedAt
}

// GetUptime returns the duration since the application started.
func (s *AppState) GetUptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.startedAt)
}

// IsHealthy returns true while the application is running.
func (s *AppState) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning
}

// IsReady returns true once running and readiness was reached.
func (s *AppState) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning && s.readyAt != nil
}

// StatusSnapshot is the immutable view served by the status endpoint.
type StatusSnapshot struct {
	State         State                     `json:"state"`
	StartedAt     time.Time                 `json:"startedAt"`
	DryRun        bool                      `json:"dryRun"`
	Namespaces    []string                  `json:"namespaces"`
	CyclesTotal   uint64                    `json:"cyclesTotal"`
	IssuesTotal   uint64                    `json:"issuesTotal"`
	ActionsTotal  uint64                    `json:"actionsTotal"`
	LastCycleAt   *time.Time                `json:"lastCycleAt,omitempty"`
	Ledger        *controller.LedgerSummary `json:"ledger,omitempty"`
	RecentIssues  []controller.Issue        `json:"recentIssues"`
	RecentActions []controller.ActionRecord `json:"recentActions"`
}

// Status returns a point-in-time copy for concurrent readers.
func (s *AppState) Status() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		State:         s.state,
		StartedAt:     s.startedAt,
		DryRun:        s.dryRun,
		Namespaces:    append([]string(nil), s.namespaces...),
		CyclesTotal:   s.cyclesTotal,
		IssuesTotal:   s.issuesTotal,
		ActionsTotal:  s.actionsTotal,
		RecentIssues:  append([]controller.Issue(nil), s.recentIssues...),
		RecentActions: append([]controller.ActionRecord(nil), s.recentActions...),
	}

	if s.lastCycle != nil {
		completedAt := s.lastCycle.CompletedAt
		ledger := s.lastCycle.Ledger

		snap.LastCycleAt = &completedAt
		snap.Ledger = &ledger
	}

	return snap
}
