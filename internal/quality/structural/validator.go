// Package structural enforces per-field contracts on telemetry records. Checks
// are field-local (no cross-field logic, no clock, no registry) and every
// violation is reported in one pass so callers can build a single rejection.
package structural

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

const (
	// InstructionMinRunes and InstructionMaxRunes bound the trimmed,
	// codepoint-counted instruction text. Byte length is never used; multi-byte
	// instructions are legitimate.
	InstructionMinRunes = 3
	InstructionMaxRunes = 1000

	// MaxImagePixels caps height*width*channels to keep decoded frames from
	// exhausting memory downstream.
	MaxImagePixels = 10_000_000

	// DefaultVectorLength is the control-vector length in the reference fleet.
	DefaultVectorLength = 7
)

// Validator runs the field-local contract checks. Safe for concurrent use.
type Validator struct {
	validate  *validator.Validate
	vectorLen int
}

// Option configures a Validator.
type Option func(*Validator)

// WithVectorLength overrides the expected control-vector length.
func WithVectorLength(n int) Option {
	return func(v *Validator) { v.vectorLen = n }
}

// New returns a Validator with all custom rules registered.
func New(opts ...Option) *Validator {
	v := &Validator{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		vectorLen: DefaultVectorLength,
	}
	for _, opt := range opts {
		opt(v)
	}

	// Finiteness uses IEEE-754 classification, not equality: NaN != NaN would
	// make an equality check silently pass.
	must(v.validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}))
	must(v.validate.RegisterValidation("subject_specified", func(fl validator.FieldLevel) bool {
		s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		return s != "" && s != domain.SubjectTypeUnspecified
	}))
	must(v.validate.RegisterValidation("known_status", func(fl validator.FieldLevel) bool {
		return domain.KnownStatus(domain.Status(fl.Field().String()))
	}))
	must(v.validate.RegisterValidation("instruction_len", func(fl validator.FieldLevel) bool {
		n := utf8.RuneCountInString(strings.TrimSpace(fl.Field().String()))
		return n >= InstructionMinRunes && n <= InstructionMaxRunes
	}))
	must(v.validate.RegisterValidation("idempotency_key", func(fl validator.FieldLevel) bool {
		key, ok := fl.Field().Interface().(uuid.UUID)
		return ok && key != uuid.Nil
	}))
	v.validate.RegisterStructValidation(func(sl validator.StructLevel) {
		shape := sl.Current().Interface().(domain.ImageShape)
		if shape.Pixels() > MaxImagePixels {
			sl.ReportError(shape.Height, "Height", "Height", "max_pixels", "")
		}
	}, domain.ImageShape{})

	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate returns every field-local violation in the record, or nil when the
// record is structurally sound. Violations are ordered by field priority
// (subject type first, then control vector) so the first entry is the
// deterministic triggering reason for a rejection.
func (v *Validator) Validate(rec *domain.TelemetryRecord) []domain.FieldViolation {
	var out []domain.FieldViolation

	if err := v.validate.Struct(rec); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			// validator.InvalidValidationError only happens for non-struct
			// input, which cannot occur here.
			return []domain.FieldViolation{{
				Field:   "record",
				Code:    domain.ReasonStatusUnknown,
				Message: err.Error(),
			}}
		}
		for _, fe := range errs {
			out = append(out, violationFor(fe))
		}
	}

	if n := len(rec.ControlVector); n != 0 && n != v.vectorLen {
		out = append(out, domain.FieldViolation{
			Field:   "control_vector",
			Code:    domain.ReasonControlVectorLengthInvalid,
			Message: fmt.Sprintf("control_vector has %d elements, expected %d", n, v.vectorLen),
		})
	}

	if len(out) == 0 {
		return nil
	}
	out = dedupe(out)
	sort.SliceStable(out, func(i, j int) bool {
		return fieldRank(out[i]) < fieldRank(out[j])
	})
	return out
}

// violationFor maps one validator error to a typed violation with a stable code.
func violationFor(fe validator.FieldError) domain.FieldViolation {
	ns := fe.StructNamespace()
	switch {
	case strings.Contains(ns, "SubjectType"):
		return domain.FieldViolation{
			Field:   "subject_type",
			Code:    domain.ReasonSubjectTypeUnspecified,
			Message: "subject_type must be a known, specific robot model identifier",
		}
	case strings.Contains(ns, "IdempotencyKey"):
		return domain.FieldViolation{
			Field:   "idempotency_key",
			Code:    domain.ReasonIdempotencyKeyMissing,
			Message: "idempotency_key must be a non-zero 128-bit identifier",
		}
	case strings.Contains(ns, "OccurredAt"):
		return domain.FieldViolation{
			Field:   "occurred_at",
			Code:    domain.ReasonOccurredAtMissing,
			Message: "occurred_at must be set",
		}
	case strings.Contains(ns, "InstructionText"):
		return domain.FieldViolation{
			Field: "instruction_text",
			Code:  domain.ReasonInstructionLengthOutOfRange,
			Message: fmt.Sprintf("instruction_text must be %d to %d characters after trimming",
				InstructionMinRunes, InstructionMaxRunes),
		}
	case strings.Contains(ns, "ControlVector") && fe.Tag() == "required":
		return domain.FieldViolation{
			Field:   "control_vector",
			Code:    domain.ReasonControlVectorMissing,
			Message: "control_vector must be present",
		}
	case strings.Contains(ns, "ControlVector"):
		return domain.FieldViolation{
			Field:   "control_vector",
			Code:    domain.ReasonControlVectorNonFinite,
			Message: "control_vector elements must be finite (no NaN or Inf)",
		}
	case strings.Contains(ns, "Status"):
		return domain.FieldViolation{
			Field:   "status",
			Code:    domain.ReasonStatusUnknown,
			Message: fmt.Sprintf("status %q is not a known status", fe.Value()),
		}
	case strings.Contains(ns, "SafetyScore"):
		return domain.FieldViolation{
			Field:   "safety_score",
			Code:    domain.ReasonSafetyScoreOutOfRange,
			Message: "safety_score must be within [0.0, 1.0]",
		}
	case strings.Contains(ns, "Latency"):
		return domain.FieldViolation{
			Field:   "latency",
			Code:    domain.ReasonLatencyNegative,
			Message: "latency components must be >= 0",
		}
	case strings.Contains(ns, "ImageShape"):
		return domain.FieldViolation{
			Field:   "image_shape",
			Code:    domain.ReasonImageShapeInvalid,
			Message: "image_shape must be 64-2048 x 64-2048 x 3 with at most 10,000,000 pixels",
		}
	}
	return domain.FieldViolation{
		Field:   fe.StructField(),
		Code:    domain.ReasonStatusUnknown,
		Message: fmt.Sprintf("%s failed %s", fe.StructNamespace(), fe.Tag()),
	}
}

// fieldRank orders violations so rejection reasons are deterministic: the
// subject sentinel always wins, then the control vector, then the rest.
func fieldRank(v domain.FieldViolation) int {
	switch v.Field {
	case "subject_type":
		return 0
	case "control_vector":
		return 1
	case "idempotency_key":
		return 2
	case "occurred_at":
		return 3
	case "instruction_text":
		return 4
	case "status":
		return 5
	case "safety_score":
		return 6
	case "latency":
		return 7
	case "image_shape":
		return 8
	}
	return 9
}

// dedupe collapses repeated (field, code) pairs; dive rules report one error
// per offending vector element but callers need each contract breach once.
func dedupe(violations []domain.FieldViolation) []domain.FieldViolation {
	seen := make(map[string]bool, len(violations))
	out := violations[:0]
	for _, v := range violations {
		k := v.Field + "/" + string(v.Code)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
