package bounds

import (
	"testing"

	"telemetry-quality-gate/backend/internal/capability"
	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg, err := capability.NewRegistry(map[string]capability.Profile{
		"arm_a": {
			DOF: 3,
			Joints: []capability.JointBound{
				{Min: -1.0, Max: 1.0},
				{Min: -1.0, Max: 1.0},
				{Min: -0.5, Max: 0.5},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func boundedRecord(vec []float64) *domain.TelemetryRecord {
	return &domain.TelemetryRecord{SubjectType: "arm_a", ControlVector: vec}
}

func TestCheck_WithinBounds(t *testing.T) {
	c := New(testRegistry(t))
	warns, reason := c.Check(boundedRecord([]float64{0.5, -0.5, 0.1}))
	if reason != nil {
		t.Fatalf("in-bounds vector rejected: %+v", reason)
	}
	if len(warns) != 0 {
		t.Errorf("in-bounds vector warned: %v", warns)
	}
}

func TestCheck_BoundsAreInclusive(t *testing.T) {
	c := New(testRegistry(t))
	if _, reason := c.Check(boundedRecord([]float64{1.0, -1.0, 0.5})); reason != nil {
		t.Fatalf("boundary values rejected: %+v", reason)
	}
}

func TestCheck_OutOfBoundsJoint(t *testing.T) {
	c := New(testRegistry(t))
	_, reason := c.Check(boundedRecord([]float64{0.0, 0.0, 0.6}))
	if reason == nil {
		t.Fatal("out-of-bounds vector accepted")
	}
	if reason.Code != domain.ReasonControlVectorOutOfBounds {
		t.Errorf("code = %s, want %s", reason.Code, domain.ReasonControlVectorOutOfBounds)
	}
	if reason.Joint != 2 || reason.Value != 0.6 || reason.BoundMin != -0.5 || reason.BoundMax != 0.5 {
		t.Errorf("detail = joint %d value %g [%g, %g], want joint 2 value 0.6 [-0.5, 0.5]",
			reason.Joint, reason.Value, reason.BoundMin, reason.BoundMax)
	}
}

func TestCheck_FirstOffendingJointReported(t *testing.T) {
	c := New(testRegistry(t))
	_, reason := c.Check(boundedRecord([]float64{2.0, 0.0, 0.6}))
	if reason == nil || reason.Joint != 0 {
		t.Fatalf("reason = %+v, want joint 0 reported first", reason)
	}
}

func TestCheck_UnusedDOFMustBeZero(t *testing.T) {
	c := New(testRegistry(t))

	// Padding within epsilon is allowed.
	if _, reason := c.Check(boundedRecord([]float64{0.1, 0.1, 0.1, 1e-9, 0.0})); reason != nil {
		t.Fatalf("near-zero padding rejected: %+v", reason)
	}

	_, reason := c.Check(boundedRecord([]float64{0.1, 0.1, 0.1, 0.0, 0.25}))
	if reason == nil || reason.Code != domain.ReasonControlVectorOutOfBounds {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonControlVectorOutOfBounds)
	}
	if reason.Joint != 4 {
		t.Errorf("joint = %d, want 4", reason.Joint)
	}
}

func TestCheck_VectorShorterThanDOF(t *testing.T) {
	c := New(testRegistry(t))
	_, reason := c.Check(boundedRecord([]float64{0.1, 0.1}))
	if reason == nil || reason.Code != domain.ReasonControlVectorLengthInvalid {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonControlVectorLengthInvalid)
	}
}

func TestCheck_UnknownProfileFailsOpen(t *testing.T) {
	c := New(testRegistry(t))
	rec := boundedRecord([]float64{99.0, 99.0, 99.0})
	rec.SubjectType = "arm_z"
	warns, reason := c.Check(rec)
	if reason != nil {
		t.Fatalf("unknown profile rejected: %+v", reason)
	}
	if len(warns) != 1 || warns[0] != domain.WarnCapabilityProfileMissing {
		t.Errorf("warnings = %v, want [%s]", warns, domain.WarnCapabilityProfileMissing)
	}
}

func TestCheck_HighActionNormWarns(t *testing.T) {
	c := New(testRegistry(t))
	// Max norm is sqrt(1+1+0.25) ~= 1.5; this vector's norm is ~1.48.
	warns, reason := c.Check(boundedRecord([]float64{0.99, 0.99, 0.49}))
	if reason != nil {
		t.Fatalf("aggressive but in-bounds vector rejected: %+v", reason)
	}
	if len(warns) != 1 || warns[0] != domain.WarnActionMagnitudeHigh {
		t.Errorf("warnings = %v, want [%s]", warns, domain.WarnActionMagnitudeHigh)
	}
}
