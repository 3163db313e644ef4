package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"telemetry-quality-gate/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends outcome events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("tqg.outcomes")}
}

// NewEventEmitterWithLogger returns an emitter over an explicit logger, for
// callers that manage logger construction themselves.
func NewEventEmitterWithLogger(logger otellog.Logger) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.OutcomeEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the outcome event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.OutcomeEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.ClassifiedAt.IsZero() {
		rec.SetTimestamp(event.ClassifiedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(string(event.Decision)))
	rec.AddAttributes(otellog.String("idempotency_key", event.IdempotencyKey.String()))
	if event.SubjectType != "" {
		rec.AddAttributes(otellog.String("subject_type", event.SubjectType))
	}
	rec.AddAttributes(otellog.String("decision", string(event.Decision)))
	if event.ReasonCode != "" {
		rec.AddAttributes(otellog.String("reason", string(event.ReasonCode)))
	}
	if len(event.Warnings) > 0 {
		warnings := make([]otellog.Value, len(event.Warnings))
		for i, w := range event.Warnings {
			warnings[i] = otellog.StringValue(string(w))
		}
		rec.AddAttributes(otellog.Slice("warnings", warnings...))
	}
	if event.Duplicate {
		rec.AddAttributes(otellog.Bool("duplicate", true))
	}
	if !event.OccurredAt.IsZero() {
		rec.AddAttributes(otellog.String("occurred_at", event.OccurredAt.UTC().Format(time.RFC3339Nano)))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
