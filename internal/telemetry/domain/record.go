// Package domain defines the telemetry record and classification outcome types
// shared by the quality-gate pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state reported for one inference call.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusError          Status = "error"
	StatusSafetyRejected Status = "safety_rejected"
	StatusTimeout        Status = "timeout"
	StatusRateLimited    Status = "rate_limited"
)

// KnownStatus reports whether s is one of the defined status values.
func KnownStatus(s Status) bool {
	switch s {
	case StatusSuccess, StatusError, StatusSafetyRejected, StatusTimeout, StatusRateLimited:
		return true
	}
	return false
}

// SubjectTypeUnspecified is the sentinel subject type. Records carrying it are
// always hard-rejected: downstream analytics group by subject type, so an
// unspecified subject can never be persisted.
const SubjectTypeUnspecified = "unspecified"

// Latency is the per-call latency decomposition in milliseconds. All three
// components are reported together or not at all by well-behaved callers, but
// each field is optional on the wire; nil pointers mean "not reported".
type Latency struct {
	TotalMs     float64 `json:"total_ms" validate:"gte=0"`
	QueueWaitMs float64 `json:"queue_wait_ms" validate:"gte=0"`
	ComputeMs   float64 `json:"compute_ms" validate:"gte=0"`
}

// ImageShape describes the camera frame attached to a record, when present.
type ImageShape struct {
	Height   int `json:"height" validate:"gte=64,lte=2048"`
	Width    int `json:"width" validate:"gte=64,lte=2048"`
	Channels int `json:"channels" validate:"eq=3"`
}

// Pixels returns height * width * channels.
func (s ImageShape) Pixels() int {
	return s.Height * s.Width * s.Channels
}

// TelemetryRecord is one inference call's telemetry, as delivered by the
// serving layer. Optional fields are pointers; nil means the caller did not
// (or, per consent, may not) populate them.
type TelemetryRecord struct {
	// IdempotencyKey is caller-supplied and unique per logical attempt;
	// retries of the same attempt reuse the same key.
	IdempotencyKey uuid.UUID `json:"idempotency_key" validate:"idempotency_key"`
	OccurredAt     time.Time `json:"occurred_at" validate:"required"`
	SubjectType    string    `json:"subject_type" validate:"subject_specified"`
	// InstructionText is the natural-language task description.
	InstructionText string `json:"instruction_text" validate:"instruction_len"`
	// ControlVector is the fixed-length motion command emitted by the model.
	ControlVector []float64   `json:"control_vector" validate:"required,dive,finite"`
	Status        Status      `json:"status" validate:"known_status"`
	SafetyScore   *float64    `json:"safety_score,omitempty" validate:"omitnil,gte=0,lte=1"`
	Latency       *Latency    `json:"latency,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	ImageShape    *ImageShape `json:"image_shape,omitempty"`
}
