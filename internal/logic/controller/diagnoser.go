package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/opsremedy/remedy-controller/internal/infra/metrics"
)

// Diagnoser turns an issue into a diagnosis. The reasoning oracle is an
// untrusted, possibly absent dependency: every oracle failure degrades to the
// static rule table so the control loop's liveness never depends on it.
type Diagnoser struct {
	logger           *slog.Logger
	oracle           Oracle
	timeout          time.Duration
	maxEvidenceBytes int
}

// NewDiagnoser creates a diagnostic engine. A nil oracle means fallback-only
// operation.
func NewDiagnoser(
	logger *slog.Logger,
	oracle Oracle,
	timeout time.Duration,
	maxEvidenceBytes int,
) *Diagnoser {
	return &Diagnoser{
		logger:           logger,
		oracle:           oracle,
		timeout:          timeout,
		maxEvidenceBytes: maxEvidenceBytes,
	}
}

// Diagnose never fails: it returns either the oracle's validated answer or
// the deterministic fallback for the issue kind.
func (d *Diagnoser) Diagnose(ctx context.Context, issue Issue) Diagnosis {
	logger := d.logger.With(
		"pod", issue.Resource.Name,
		"namespace", issue.Resource.Namespace,
		"issue", issue.Kind,
	)

	if d.oracle == nil {
		metrics.RecordOracleFallback("disabled")

		return d.fallback(issue)
	}

	req := OracleRequest{
		IssueKind: issue.Kind,
		Resource:  issue.Resource.ResourceRef,
		Evidence:  d.encodeEvidence(ctx, issue.Evidence),
	}

	oracleCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.oracle.Analyze(oracleCtx, req)
	if err != nil {
		logger.WarnContext(ctx, "oracle analysis failed, using fallback", "reason", err)
		metrics.RecordOracleFallback("error")

		return d.fallback(issue)
	}

	if resp.RootCause == "" {
		logger.WarnContext(ctx, "oracle returned empty root cause, using fallback")
		metrics.RecordOracleFallback("malformed")

		return d.fallback(issue)
	}

	return Diagnosis{
		RootCause: resp.RootCause,
		Action:    ParseActionKind(resp.Action),
	}
}

// encodeEvidence serializes the bundle and caps it to bound external-call cost.
// The log excerpt yields first since it dominates the size, then the events.
// The result is always valid JSON; an empty string means nothing fit.
func (d *Diagnoser) encodeEvidence(ctx context.Context, evidence Evidence) string {
	encoded, err := json.Marshal(evidence)
	if err != nil {
		d.logger.WarnContext(ctx, "could not encode evidence bundle", "reason", err)

		return ""
	}

	if len(encoded) <= d.maxEvidenceBytes {
		return string(encoded)
	}

	overflow := len(encoded) - d.maxEvidenceBytes
	evidence.LogExcerpt = trimToRune(evidence.LogExcerpt, len(evidence.LogExcerpt)-overflow)

	if encoded, err = json.Marshal(evidence); err == nil && len(encoded) <= d.maxEvidenceBytes {
		return string(encoded)
	}

	evidence.LogExcerpt = ""
	evidence.Events = nil

	if encoded, err = json.Marshal(evidence); err == nil && len(encoded) <= d.maxEvidenceBytes {
		return string(encoded)
	}

	d.logger.WarnContext(ctx, "evidence bundle exceeds cap even after trimming",
		"cap", d.maxEvidenceBytes)

	return ""
}

// trimToRune cuts s to at most n bytes without splitting a multi-byte rune.
func trimToRune(s string, n int) string {
	if n <= 0 {
		return ""
	}

	if n >= len(s) {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}

func (d *Diagnoser) fallback(issue Issue) Diagnosis {
	action, ok := fallbackActions[issue.Kind]
	if !ok {
		action = ActionNoOp
	}

	return Diagnosis{
		RootCause:    fmt.Sprintf("rule-based: detected %s on %s", issue.Kind, issue.Resource.Key()),
		Action:       action,
		FromFallback: true,
	}
}
