// Package bounds validates control vectors against the subject's capability
// profile. A recognized subject with no profile is a configuration gap and
// fails open to a warning; only real envelope violations hard-reject.
package bounds

import (
	"fmt"
	"math"

	"telemetry-quality-gate/backend/internal/capability"
	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

const (
	// UnusedDOFEpsilon bounds elements past the subject's native DOF. They
	// represent unused degrees of freedom and must be numerically negligible.
	UnusedDOFEpsilon = 1e-6

	// HighActionNormFraction of the profile's maximum achievable L2 norm marks
	// a motion command as unusually aggressive (soft warning only).
	HighActionNormFraction = 0.9
)

// Checker validates control vectors against an immutable registry.
type Checker struct {
	registry *capability.Registry
}

// New returns a Checker backed by the given registry.
func New(registry *capability.Registry) *Checker {
	return &Checker{registry: registry}
}

// Check validates rec.ControlVector against the subject's profile. The subject
// sentinel is rejected by the structural validator before this runs; an
// unrecognized-but-specified subject yields a warning, never a reject.
func (c *Checker) Check(rec *domain.TelemetryRecord) ([]domain.WarningCode, *domain.RejectionReason) {
	profile, ok := c.registry.Lookup(rec.SubjectType)
	if !ok {
		return []domain.WarningCode{domain.WarnCapabilityProfileMissing}, nil
	}

	vec := rec.ControlVector
	if len(vec) < profile.DOF {
		return nil, &domain.RejectionReason{
			Code:   domain.ReasonControlVectorLengthInvalid,
			Field:  "control_vector",
			Detail: fmt.Sprintf("control_vector has %d elements but subject %q has %d degrees of freedom", len(vec), rec.SubjectType, profile.DOF),
		}
	}

	for i := 0; i < profile.DOF; i++ {
		j := profile.Joints[i]
		if vec[i] < j.Min || vec[i] > j.Max {
			return nil, &domain.RejectionReason{
				Code:     domain.ReasonControlVectorOutOfBounds,
				Field:    "control_vector",
				Joint:    i,
				Value:    vec[i],
				BoundMin: j.Min,
				BoundMax: j.Max,
				Detail:   fmt.Sprintf("joint %d value %g outside [%g, %g]", i, vec[i], j.Min, j.Max),
			}
		}
	}
	for i := profile.DOF; i < len(vec); i++ {
		if math.Abs(vec[i]) > UnusedDOFEpsilon {
			return nil, &domain.RejectionReason{
				Code:     domain.ReasonControlVectorOutOfBounds,
				Field:    "control_vector",
				Joint:    i,
				Value:    vec[i],
				BoundMin: -UnusedDOFEpsilon,
				BoundMax: UnusedDOFEpsilon,
				Detail:   fmt.Sprintf("element %d is past the subject's %d native degrees of freedom and must be ~0, got %g", i, profile.DOF, vec[i]),
			}
		}
	}

	if max := profile.MaxActionNorm(); max > 0 && l2norm(vec[:profile.DOF]) > HighActionNormFraction*max {
		return []domain.WarningCode{domain.WarnActionMagnitudeHigh}, nil
	}
	return nil, nil
}

func l2norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
