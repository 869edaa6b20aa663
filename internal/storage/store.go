package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

// recentLimit caps the in-memory incident buffer behind /api/incidents.
const recentLimit = 200

// Sink persists action records, append-only.
type Sink interface {
	Append(ctx context.Context, rec controller.ActionRecord) error
	Close() error
}

// Trail fans every record out to all configured sinks and keeps a bounded
// in-memory buffer for the incidents endpoint. Sink failures are joined and
// surfaced to the caller; they never stop other sinks.
type Trail struct {
	sinks  []Sink
	mu     sync.RWMutex
	recent []controller.ActionRecord
}

// NewTrail creates an audit trail over the given sinks.
func NewTrail(sinks ...Sink) *Trail {
	return &Trail{sinks: sinks}
}

var _ controller.AuditSink = (*Trail)(nil)

// Append records to memory first, then to every sink.
func (t *Trail) Append(ctx context.Context, rec controller.ActionRecord) error {
	t.mu.Lock()

	t.recent = append(t.recent, rec)
	if excess := len(t.recent) - recentLimit; excess > 0 {
		t.recent = t.recent[excess:]
	}

	t.mu.Unlock()

	var errs error
	for _, sink := range t.sinks {
		errs = errors.Join(errs, sink.Append(ctx, rec))
	}

	return errs
}

// Recent returns up to limit most recent records, newest first.
func (t *Trail) Recent(limit int) []controller.ActionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.recent) {
		limit = len(t.recent)
	}

	out := make([]controller.ActionRecord, 0, limit)
	for i := len(t.recent) - 1; i >= len(t.recent)-limit; i-- {
		out = append(out, t.recent[i])
	}

	return out
}

// Close closes all sinks.
func (t *Trail) Close() error {
	var errs error
	for _, sink := range t.sinks {
		errs = errors.Join(errs, sink.Close())
	}

	return errs
}
