// Package consistency enforces invariants that span multiple record fields:
// clock skew, status/score contradictions, error-message presence, and the
// latency decomposition. Hard rejects here mean corrupted upstream data or a
// caller logic bug; they are never repaired and re-accepted.
package consistency

import (
	"fmt"
	"strings"
	"time"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

const (
	// SafetyRejectScoreCeiling: a record claiming safety_rejected while also
	// declaring a score at or above this is a logical contradiction.
	SafetyRejectScoreCeiling = 0.8

	// LowSafetyScore is the investigate-worthy soft-warning threshold.
	LowSafetyScore = 0.3

	// MinInstructionTokens is the soft "real task description" token floor.
	MinInstructionTokens = 3

	// DefaultLatencyToleranceMs absorbs rounding in the reported latency
	// decomposition; total may undershoot queue+compute by at most this much.
	DefaultLatencyToleranceMs = 1.0
)

// Checker runs the cross-field checks. Safe for concurrent use.
type Checker struct {
	clockSkew    time.Duration
	latencyTolMs float64
}

// Option configures a Checker.
type Option func(*Checker)

// WithClockSkew allows occurred_at to be up to d in the future. The default is
// zero: strictly not future.
func WithClockSkew(d time.Duration) Option {
	return func(c *Checker) { c.clockSkew = d }
}

// WithLatencyTolerance overrides the decomposition tolerance in milliseconds.
func WithLatencyTolerance(ms float64) Option {
	return func(c *Checker) { c.latencyTolMs = ms }
}

// New returns a Checker with the reference tolerances.
func New(opts ...Option) *Checker {
	c := &Checker{latencyTolMs: DefaultLatencyToleranceMs}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates the record's cross-field invariants against now. It returns
// either soft warnings (record still acceptable) or a single rejection reason.
// Hard rules are evaluated in a fixed order (timestamp, safety contradiction,
// error message, latency) so the triggering reason is deterministic.
func (c *Checker) Check(rec *domain.TelemetryRecord, now time.Time) ([]domain.WarningCode, *domain.RejectionReason) {
	if rec.OccurredAt.After(now.Add(c.clockSkew)) {
		return nil, &domain.RejectionReason{
			Code:   domain.ReasonOccurredAtInFuture,
			Field:  "occurred_at",
			Detail: fmt.Sprintf("occurred_at %s is after processing time %s", rec.OccurredAt.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano)),
		}
	}

	if rec.Status == domain.StatusSafetyRejected {
		if rec.SafetyScore == nil {
			return nil, &domain.RejectionReason{
				Code:   domain.ReasonSafetyScoreMissingForStatus,
				Field:  "safety_score",
				Detail: "safety_score is required when status is safety_rejected",
			}
		}
		if *rec.SafetyScore >= SafetyRejectScoreCeiling {
			return nil, &domain.RejectionReason{
				Code:   domain.ReasonSafetyStatusScoreContradiction,
				Field:  "safety_score",
				Value:  *rec.SafetyScore,
				Detail: fmt.Sprintf("status safety_rejected contradicts safety_score %.3f >= %.2f", *rec.SafetyScore, SafetyRejectScoreCeiling),
			}
		}
	}

	if rec.Status == domain.StatusError && strings.TrimSpace(rec.ErrorMessage) == "" {
		return nil, &domain.RejectionReason{
			Code:   domain.ReasonErrorMessageMissing,
			Field:  "error_message",
			Detail: "error_message is required when status is error",
		}
	}

	if l := rec.Latency; l != nil {
		if l.TotalMs < l.QueueWaitMs+l.ComputeMs-c.latencyTolMs {
			return nil, &domain.RejectionReason{
				Code:   domain.ReasonLatencyDecompositionInconsistent,
				Field:  "latency",
				Value:  l.TotalMs,
				Detail: fmt.Sprintf("total %.3fms < queue_wait %.3fms + compute %.3fms", l.TotalMs, l.QueueWaitMs, l.ComputeMs),
			}
		}
	}

	return c.warnings(rec), nil
}

func (c *Checker) warnings(rec *domain.TelemetryRecord) []domain.WarningCode {
	var warns []domain.WarningCode
	if rec.SafetyScore == nil {
		warns = append(warns, domain.WarnSafetyScoreMissing)
	} else if *rec.SafetyScore < LowSafetyScore {
		warns = append(warns, domain.WarnSafetyScoreLow)
	}
	if rec.Latency == nil {
		warns = append(warns, domain.WarnLatencyMissing)
	}
	if rec.ImageShape == nil {
		warns = append(warns, domain.WarnImageShapeMissing)
	}
	if len(strings.Fields(rec.InstructionText)) < MinInstructionTokens {
		warns = append(warns, domain.WarnInstructionFewTokens)
	}
	return warns
}
