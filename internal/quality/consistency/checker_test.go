package consistency

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

var checkNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func cleanRecord() *domain.TelemetryRecord {
	score := 0.95
	return &domain.TelemetryRecord{
		IdempotencyKey:  uuid.New(),
		OccurredAt:      checkNow.Add(-time.Minute),
		SubjectType:     "arm_a",
		InstructionText: "pick up the red cube",
		ControlVector:   []float64{0.1, -0.2, 0.05, 0.3, -0.1, 0.15, 0.0},
		Status:          domain.StatusSuccess,
		SafetyScore:     &score,
		Latency:         &domain.Latency{TotalMs: 120, QueueWaitMs: 10, ComputeMs: 110},
		ImageShape:      &domain.ImageShape{Height: 480, Width: 640, Channels: 3},
	}
}

func TestCheck_CleanRecordNoWarnings(t *testing.T) {
	warns, reason := New().Check(cleanRecord(), checkNow)
	if reason != nil {
		t.Fatalf("clean record rejected: %+v", reason)
	}
	if len(warns) != 0 {
		t.Errorf("clean record warned: %v", warns)
	}
}

func TestCheck_FutureTimestampRejected(t *testing.T) {
	rec := cleanRecord()
	rec.OccurredAt = checkNow.Add(time.Second)
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonOccurredAtInFuture {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonOccurredAtInFuture)
	}
}

func TestCheck_FutureTimestampWithinSkewAllowed(t *testing.T) {
	rec := cleanRecord()
	rec.OccurredAt = checkNow.Add(2 * time.Second)
	_, reason := New(WithClockSkew(5 * time.Second)).Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("timestamp within skew rejected: %+v", reason)
	}
}

func TestCheck_SafetyRejectedContradiction(t *testing.T) {
	rec := cleanRecord()
	rec.Status = domain.StatusSafetyRejected
	high := 0.8
	rec.SafetyScore = &high
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonSafetyStatusScoreContradiction {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonSafetyStatusScoreContradiction)
	}

	// Below the ceiling the pairing is coherent.
	low := 0.2
	rec.SafetyScore = &low
	_, reason = New().Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("coherent safety_rejected record rejected: %+v", reason)
	}
}

func TestCheck_SafetyRejectedWithoutScore(t *testing.T) {
	rec := cleanRecord()
	rec.Status = domain.StatusSafetyRejected
	rec.SafetyScore = nil
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonSafetyScoreMissingForStatus {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonSafetyScoreMissingForStatus)
	}
}

func TestCheck_ErrorStatusRequiresMessage(t *testing.T) {
	rec := cleanRecord()
	rec.Status = domain.StatusError
	rec.ErrorMessage = "   "
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonErrorMessageMissing {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonErrorMessageMissing)
	}

	rec.ErrorMessage = "inference backend timed out"
	_, reason = New().Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("error record with message rejected: %+v", reason)
	}
}

func TestCheck_LatencyDecomposition(t *testing.T) {
	rec := cleanRecord()
	rec.Latency = &domain.Latency{TotalMs: 100, QueueWaitMs: 60, ComputeMs: 60}
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonLatencyDecompositionInconsistent {
		t.Fatalf("reason = %+v, want %s", reason, domain.ReasonLatencyDecompositionInconsistent)
	}

	// Undershoot inside the rounding tolerance is fine.
	rec.Latency = &domain.Latency{TotalMs: 119.5, QueueWaitMs: 10, ComputeMs: 110}
	_, reason = New().Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("tolerated decomposition rejected: %+v", reason)
	}
}

func TestCheck_HardOrderTimestampBeatsLatency(t *testing.T) {
	rec := cleanRecord()
	rec.OccurredAt = checkNow.Add(time.Hour)
	rec.Latency = &domain.Latency{TotalMs: 1, QueueWaitMs: 100, ComputeMs: 100}
	_, reason := New().Check(rec, checkNow)
	if reason == nil || reason.Code != domain.ReasonOccurredAtInFuture {
		t.Fatalf("reason = %+v, want timestamp to trigger first", reason)
	}
}

func TestCheck_SoftWarnings(t *testing.T) {
	rec := cleanRecord()
	rec.SafetyScore = nil
	rec.Latency = nil
	rec.ImageShape = nil
	rec.InstructionText = "wave hi"
	warns, reason := New().Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("soft-only record rejected: %+v", reason)
	}
	want := []domain.WarningCode{
		domain.WarnSafetyScoreMissing,
		domain.WarnLatencyMissing,
		domain.WarnImageShapeMissing,
		domain.WarnInstructionFewTokens,
	}
	if len(warns) != len(want) {
		t.Fatalf("warnings = %v, want %v", warns, want)
	}
	for i, w := range want {
		if warns[i] != w {
			t.Errorf("warnings[%d] = %s, want %s", i, warns[i], w)
		}
	}
}

func TestCheck_LowSafetyScoreWarns(t *testing.T) {
	rec := cleanRecord()
	low := 0.1
	rec.SafetyScore = &low
	warns, reason := New().Check(rec, checkNow)
	if reason != nil {
		t.Fatalf("low-score record rejected: %+v", reason)
	}
	if len(warns) != 1 || warns[0] != domain.WarnSafetyScoreLow {
		t.Errorf("warnings = %v, want [%s]", warns, domain.WarnSafetyScoreLow)
	}
}
