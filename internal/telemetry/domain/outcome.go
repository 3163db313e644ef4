package domain

// ReasonCode is a stable, machine-readable identifier for a rejection cause or
// a per-field violation. Codes never change once emitted; alerting and client
// error mapping key on them.
type ReasonCode string

const (
	ReasonSubjectTypeUnspecified           ReasonCode = "SUBJECT_TYPE_UNSPECIFIED"
	ReasonSubjectTypeMissing               ReasonCode = "SUBJECT_TYPE_MISSING"
	ReasonIdempotencyKeyMissing            ReasonCode = "IDEMPOTENCY_KEY_MISSING"
	ReasonStatusUnknown                    ReasonCode = "STATUS_UNKNOWN"
	ReasonInstructionLengthOutOfRange      ReasonCode = "INSTRUCTION_LENGTH_OUT_OF_RANGE"
	ReasonControlVectorMissing             ReasonCode = "CONTROL_VECTOR_MISSING"
	ReasonControlVectorLengthInvalid       ReasonCode = "CONTROL_VECTOR_LENGTH_INVALID"
	ReasonControlVectorNonFinite           ReasonCode = "CONTROL_VECTOR_NON_FINITE"
	ReasonControlVectorOutOfBounds         ReasonCode = "CONTROL_VECTOR_OUT_OF_BOUNDS"
	ReasonSafetyScoreOutOfRange            ReasonCode = "SAFETY_SCORE_OUT_OF_RANGE"
	ReasonLatencyNegative                  ReasonCode = "LATENCY_NEGATIVE"
	ReasonLatencyDecompositionInconsistent ReasonCode = "LATENCY_DECOMPOSITION_INCONSISTENT"
	ReasonImageShapeInvalid                ReasonCode = "IMAGE_SHAPE_INVALID"
	ReasonOccurredAtMissing                ReasonCode = "OCCURRED_AT_MISSING"
	ReasonOccurredAtInFuture               ReasonCode = "OCCURRED_AT_IN_FUTURE"
	ReasonSafetyStatusScoreContradiction   ReasonCode = "SAFETY_STATUS_SCORE_CONTRADICTION"
	ReasonSafetyScoreMissingForStatus      ReasonCode = "SAFETY_SCORE_MISSING_FOR_STATUS"
	ReasonErrorMessageMissing              ReasonCode = "ERROR_MESSAGE_MISSING"
	// ReasonDuplicateWithinWindow labels metrics for replayed outcomes; a
	// duplicate itself is not a rejection (the first-seen outcome is returned).
	ReasonDuplicateWithinWindow ReasonCode = "DUPLICATE_WITHIN_WINDOW"
)

// WarningCode identifies a soft-quality concern. Warnings never block
// acceptance; they are counted and surfaced for monitoring.
type WarningCode string

const (
	WarnSafetyScoreMissing       WarningCode = "SAFETY_SCORE_MISSING"
	WarnSafetyScoreLow           WarningCode = "SAFETY_SCORE_LOW"
	WarnImageShapeMissing        WarningCode = "IMAGE_SHAPE_MISSING"
	WarnLatencyMissing           WarningCode = "LATENCY_MISSING"
	WarnInstructionFewTokens     WarningCode = "INSTRUCTION_FEW_TOKENS"
	WarnActionMagnitudeHigh      WarningCode = "ACTION_MAGNITUDE_HIGH"
	WarnCapabilityProfileMissing WarningCode = "CAPABILITY_PROFILE_MISSING"
	WarnNearDuplicateFlagged     WarningCode = "NEAR_DUPLICATE_FLAGGED"
)

// FieldViolation is one field-local contract breach found by the structural
// validator. All violations for a record are reported together so the caller
// can build a single rejection response.
type FieldViolation struct {
	Field   string     `json:"field"`
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// RejectionReason explains a hard reject. Code is always set; the remaining
// fields carry code-specific detail (e.g. the offending joint for an
// out-of-bounds control vector).
type RejectionReason struct {
	Code       ReasonCode       `json:"code"`
	Field      string           `json:"field,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	Joint      int              `json:"joint,omitempty"`
	Value      float64          `json:"value,omitempty"`
	BoundMin   float64          `json:"bound_min,omitempty"`
	BoundMax   float64          `json:"bound_max,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

// Decision is the top-level classification of a record.
type Decision string

const (
	DecisionAccepted        Decision = "accepted"
	DecisionAcceptedWarning Decision = "accepted_with_warnings"
	DecisionRejected        Decision = "rejected"
)

// ValidationOutcome is the terminal result of classifying one record. It is
// never mutated after creation; duplicates within the claim window receive a
// copy of the first caller's outcome with Duplicate set.
type ValidationOutcome struct {
	Decision Decision      `json:"decision"`
	Warnings []WarningCode `json:"warnings,omitempty"`
	// Reason is set only when Decision is DecisionRejected.
	Reason *RejectionReason `json:"reason,omitempty"`
	// Duplicate marks an outcome replayed from the duplicate claim store.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Accepted reports whether the record was accepted (with or without warnings).
func (o ValidationOutcome) Accepted() bool {
	return o.Decision == DecisionAccepted || o.Decision == DecisionAcceptedWarning
}

// Rejected returns an outcome for the given reason.
func Rejected(reason RejectionReason) ValidationOutcome {
	return ValidationOutcome{Decision: DecisionRejected, Reason: &reason}
}

// Accept returns an accepting outcome; warnings may be nil.
func Accept(warnings []WarningCode) ValidationOutcome {
	if len(warnings) == 0 {
		return ValidationOutcome{Decision: DecisionAccepted}
	}
	return ValidationOutcome{Decision: DecisionAcceptedWarning, Warnings: warnings}
}
