package controller

import (
	"time"
)

const rateWindowSpan = time.Hour

// Ledger tracks per-resource last-action timestamps and a global sliding-window
// action count. It is owned by the single driver goroutine: the remediation
// engine is the only writer, the governor the only reader. Concurrent consumers
// get an immutable Summary at cycle-publish time instead.
type Ledger struct {
	cooldown          time.Duration
	maxActionsPerHour int
	lastAction        map[string]time.Time
	window            []time.Time
	now               func() time.Time
}

// NewLedger creates an empty ledger with the given safety bounds.
func NewLedger(cooldown time.Duration, maxActionsPerHour int) *Ledger {
	return &Ledger{
		cooldown:          cooldown,
		maxActionsPerHour: maxActionsPerHour,
		lastAction:        make(map[string]time.Time),
		now:               time.Now,
	}
}

// InCooldown reports whether the resource key acted on less than the cooldown
// period ago, and how long remains.
func (l *Ledger) InCooldown(key string) (time.Duration, bool) {
	last, ok := l.lastAction[key]
	if !ok {
		return 0, false
	}

	elapsed := l.now().Sub(last)
	if elapsed < l.cooldown {
		return l.cooldown - elapsed, true
	}

	return 0, false
}

// RateExhausted reports whether the trailing-hour action count has reached the
// configured maximum. Pruning happens on every check.
func (l *Ledger) RateExhausted() bool {
	l.prune()

	return len(l.window) >= l.maxActionsPerHour
}

// RecordAction marks an executed action against the resource key. Timestamps
// per key are monotonically non-decreasing.
func (l *Ledger) RecordAction(key string) {
	now := l.now()

	if last, ok := l.lastAction[key]; !ok || now.After(last) {
		l.lastAction[key] = now
	}

	l.prune()
	l.window = append(l.window, now)
}

func (l *Ledger) prune() {
	cutoff := l.now().Add(-rateWindowSpan)

	kept := l.window[:0]
	for _, t := range l.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	l.window = kept
}

// LedgerSummary is an immutable copy of the ledger state for publishing.
type LedgerSummary struct {
	ActionsLastHour   int                  `json:"actionsLastHour"`
	MaxActionsPerHour int                  `json:"maxActionsPerHour"`
	CooldownSeconds   float64              `json:"cooldownSeconds"`
	LastActions       map[string]time.Time `json:"lastActions"`
}

// Summary returns a point-in-time copy safe for concurrent readers.
func (l *Ledger) Summary() LedgerSummary {
	l.prune()

	last := make(map[string]time.Time, len(l.lastAction))
	for k, v := range l.lastAction {
		last[k] = v
	}

	return LedgerSummary{
		ActionsLastHour:   len(l.window),
		MaxActionsPerHour: l.maxActionsPerHour,
		CooldownSeconds:   l.cooldown.Seconds(),
		LastActions:       last,
	}
}
