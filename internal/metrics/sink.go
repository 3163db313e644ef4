// Package metrics defines the recording interface the quality gate emits
// through. The engine never depends on a specific backend; adapters exist for
// OTel and Prometheus, plus a no-op for tests. Recording is best-effort and
// must never abort an otherwise-valid classification.
package metrics

import (
	"time"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// Sink receives counters and timings from the quality gate.
type Sink interface {
	// IncOutcome counts one terminal classification.
	IncOutcome(decision domain.Decision)
	// IncRejection counts one hard reject by reason code.
	IncRejection(code domain.ReasonCode)
	// IncWarning counts one soft warning by class.
	IncWarning(code domain.WarningCode)
	// IncClaim counts a claim-store lookup; hit means a replayed duplicate.
	IncClaim(hit bool)
	// IncFold counts a near-duplicate index result by kind.
	IncFold(kind string)
	// ObserveClassifyDuration records one end-to-end classification time.
	ObserveClassifyDuration(d time.Duration)
}

// Noop discards everything. Useful in tests and when no backend is wired.
type Noop struct{}

func (Noop) IncOutcome(domain.Decision)            {}
func (Noop) IncRejection(domain.ReasonCode)        {}
func (Noop) IncWarning(domain.WarningCode)         {}
func (Noop) IncClaim(bool)                         {}
func (Noop) IncFold(string)                        {}
func (Noop) ObserveClassifyDuration(time.Duration) {}
