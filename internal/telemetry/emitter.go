package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// OutcomeEvent is the structured record of one terminal classification,
// emitted for observability (e.g. to OTel Logs). It carries no instruction
// text or control data: only the decision and its codes.
type OutcomeEvent struct {
	IdempotencyKey uuid.UUID
	SubjectType    string
	Decision       domain.Decision
	ReasonCode     domain.ReasonCode
	Warnings       []domain.WarningCode
	Duplicate      bool
	OccurredAt     time.Time
	ClassifiedAt   time.Time
}

// EventEmitter emits outcome events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *OutcomeEvent) error
}
