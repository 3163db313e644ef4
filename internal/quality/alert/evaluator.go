// Package alert decides whether rolling-window quality rates should page.
// Evaluation is an observability side effect: it never blocks or aborts a
// classification, and evaluator failures fall back to built-in thresholds.
package alert

import "context"

// Rates are the rolling-window rates the gate observed, all in [0, 1]
// relative to Total records in the window.
type Rates struct {
	// Total is the number of records classified in the window.
	Total int64 `json:"total"`
	// HardRejectRate is rejects / total.
	HardRejectRate float64 `json:"hard_reject_rate"`
	// MissingSubjectRate is unspecified-subject rejects / total.
	MissingSubjectRate float64 `json:"missing_subject_rate"`
	// NonFiniteRate is non-finite control-vector rejects / total.
	NonFiniteRate float64 `json:"non_finite_rate"`
	// DuplicateRate is claim-store hits / total. Sustained high values mean a
	// client-side retry bug upstream.
	DuplicateRate float64 `json:"duplicate_rate"`
}

// Alert names a threshold breach that should page.
type Alert struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// Evaluator turns observed rates into firing alerts.
type Evaluator interface {
	Evaluate(ctx context.Context, rates Rates) ([]Alert, error)
}

// Thresholds are the reference paging thresholds.
type Thresholds struct {
	HardRejectRate     float64
	MissingSubjectRate float64
	NonFiniteRate      float64
	DuplicateRate      float64
}

// DefaultThresholds returns the reference values: reject 1%, missing subject
// 5%, non-finite 0.1%, duplicates 10%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HardRejectRate:     0.01,
		MissingSubjectRate: 0.05,
		NonFiniteRate:      0.001,
		DuplicateRate:      0.10,
	}
}

// StaticEvaluator applies fixed thresholds in-process. It is the fallback when
// policy evaluation fails and the default when no policy engine is wired.
type StaticEvaluator struct {
	T Thresholds
}

// NewStaticEvaluator returns an evaluator with the reference thresholds.
func NewStaticEvaluator() *StaticEvaluator {
	return &StaticEvaluator{T: DefaultThresholds()}
}

// Evaluate implements Evaluator. Never returns an error.
func (e *StaticEvaluator) Evaluate(_ context.Context, r Rates) ([]Alert, error) {
	var alerts []Alert
	if r.HardRejectRate > e.T.HardRejectRate {
		alerts = append(alerts, Alert{Name: "hard_reject_rate_high",
			Detail: "hard-reject rate above threshold; upstream data contract likely broken"})
	}
	if r.MissingSubjectRate > e.T.MissingSubjectRate {
		alerts = append(alerts, Alert{Name: "missing_subject_type_rate_high",
			Detail: "unspecified subject_type rate above threshold"})
	}
	if r.NonFiniteRate > e.T.NonFiniteRate {
		alerts = append(alerts, Alert{Name: "non_finite_control_vector_rate_high",
			Detail: "non-finite control vector rate above threshold; inference numerics suspect"})
	}
	if r.DuplicateRate > e.T.DuplicateRate {
		alerts = append(alerts, Alert{Name: "duplicate_rate_high",
			Detail: "claim-store hit rate above threshold; client-side retry bug likely"})
	}
	return alerts, nil
}
