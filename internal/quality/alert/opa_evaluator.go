package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const alertsQuery = "data.tqg.alerts.alerts"

// Default Rego policy implementing the reference thresholds. Operators can
// supply their own policy to change paging rules without a redeploy.
const defaultRegoPolicy = `package tqg.alerts

alerts contains alert if {
	input.rates.hard_reject_rate > input.thresholds.hard_reject_rate
	alert := {
		"name": "hard_reject_rate_high",
		"detail": "hard-reject rate above threshold; upstream data contract likely broken",
	}
}

alerts contains alert if {
	input.rates.missing_subject_rate > input.thresholds.missing_subject_rate
	alert := {
		"name": "missing_subject_type_rate_high",
		"detail": "unspecified subject_type rate above threshold",
	}
}

alerts contains alert if {
	input.rates.non_finite_rate > input.thresholds.non_finite_rate
	alert := {
		"name": "non_finite_control_vector_rate_high",
		"detail": "non-finite control vector rate above threshold; inference numerics suspect",
	}
}

alerts contains alert if {
	input.rates.duplicate_rate > input.thresholds.duplicate_rate
	alert := {
		"name": "duplicate_rate_high",
		"detail": "claim-store hit rate above threshold; client-side retry bug likely",
	}
}
`

// OPAEvaluator evaluates alert policy as Rego. A failed evaluation logs and
// falls back to the static thresholds so alerting degrades, never breaks.
type OPAEvaluator struct {
	policy     string
	thresholds Thresholds
	fallback   *StaticEvaluator
}

// NewOPAEvaluator returns a Rego-backed evaluator. policy may be empty, in
// which case the built-in default policy is used.
func NewOPAEvaluator(policy string, thresholds Thresholds) *OPAEvaluator {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	return &OPAEvaluator{
		policy:     policy,
		thresholds: thresholds,
		fallback:   &StaticEvaluator{T: thresholds},
	}
}

// HealthCheck verifies the configured policy compiles and evaluates against a
// minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, Rates{Total: 1})
	return err
}

// Evaluate implements Evaluator.
func (e *OPAEvaluator) Evaluate(ctx context.Context, rates Rates) ([]Alert, error) {
	alerts, err := e.eval(ctx, rates)
	if err != nil {
		log.Printf("alert: policy evaluation failed: %v, using static thresholds", err)
		return e.fallback.Evaluate(ctx, rates)
	}
	return alerts, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, rates Rates) ([]Alert, error) {
	compiler, err := ast.CompileModules(map[string]string{"alerts.rego": e.policy})
	if err != nil {
		return nil, fmt.Errorf("compile alert policy: %w", err)
	}
	input := map[string]interface{}{
		"rates": map[string]interface{}{
			"total":                rates.Total,
			"hard_reject_rate":     rates.HardRejectRate,
			"missing_subject_rate": rates.MissingSubjectRate,
			"non_finite_rate":      rates.NonFiniteRate,
			"duplicate_rate":       rates.DuplicateRate,
		},
		"thresholds": map[string]interface{}{
			"hard_reject_rate":     e.thresholds.HardRejectRate,
			"missing_subject_rate": e.thresholds.MissingSubjectRate,
			"non_finite_rate":      e.thresholds.NonFiniteRate,
			"duplicate_rate":       e.thresholds.DuplicateRate,
		},
	}
	q := rego.New(
		rego.Query(alertsQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("eval alert policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("alert policy query returned no result")
	}
	raw, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("decode alert policy result: %w", err)
	}
	var alerts []Alert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("decode alert policy result: %w", err)
	}
	return alerts, nil
}
