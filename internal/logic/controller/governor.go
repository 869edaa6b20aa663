package controller

import (
	"time"
)

// SafetyPolicy is the static part of the governor's configuration.
type SafetyPolicy struct {
	DryRun             bool
	ExcludedNamespaces []string
}

// Governor approves or vetoes proposed actions. It is pure: it reads the
// ledger and policy, mutates nothing, and returns the same decision for the
// same inputs. First matching veto wins.
type Governor struct {
	policy   SafetyPolicy
	excluded map[string]struct{}
	ledger   *Ledger
	window   WindowChecker
	now      func() time.Time
}

// NewGovernor creates a safety governor. A nil window means remediation is
// always allowed time-wise.
func NewGovernor(policy SafetyPolicy, ledger *Ledger, window WindowChecker) *Governor {
	excluded := make(map[string]struct{}, len(policy.ExcludedNamespaces))
	for _, ns := range policy.ExcludedNamespaces {
		excluded[ns] = struct{}{}
	}

	return &Governor{
		policy:   policy,
		excluded: excluded,
		ledger:   ledger,
		window:   window,
		now:      time.Now,
	}
}

// Authorize evaluates the veto chain:
// exclusion, dry-run, maintenance window, cooldown, rate limit.
func (g *Governor) Authorize(issue Issue) Decision {
	if _, ok := g.excluded[issue.Resource.Namespace]; ok {
		return DecisionSkipExcluded
	}

	if g.policy.DryRun {
		return DecisionSkipDryRun
	}

	if g.window != nil && !g.window.Contains(g.now()) {
		return DecisionSkipWindow
	}

	if _, cooling := g.ledger.InCooldown(issue.Resource.Key()); cooling {
		return DecisionSkipCooldown
	}

	if g.ledger.RateExhausted() {
		return DecisionSkipRateLimit
	}

	return DecisionProceed
}
