package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// OTelSink records gate counters through an OTel Meter.
type OTelSink struct {
	outcomes   otelmetric.Int64Counter
	rejections otelmetric.Int64Counter
	warnings   otelmetric.Int64Counter
	claims     otelmetric.Int64Counter
	folds      otelmetric.Int64Counter
	duration   otelmetric.Float64Histogram
}

// NewOTelSink creates the gate instruments on the given meter provider.
func NewOTelSink(provider otelmetric.MeterProvider) (*OTelSink, error) {
	meter := provider.Meter("tqg.quality_gate")
	s := &OTelSink{}
	var err error
	if s.outcomes, err = meter.Int64Counter("tqg.outcomes",
		otelmetric.WithDescription("Terminal classifications by decision")); err != nil {
		return nil, fmt.Errorf("metrics: outcomes counter: %w", err)
	}
	if s.rejections, err = meter.Int64Counter("tqg.rejections",
		otelmetric.WithDescription("Hard rejects by reason code")); err != nil {
		return nil, fmt.Errorf("metrics: rejections counter: %w", err)
	}
	if s.warnings, err = meter.Int64Counter("tqg.warnings",
		otelmetric.WithDescription("Soft warnings by class")); err != nil {
		return nil, fmt.Errorf("metrics: warnings counter: %w", err)
	}
	if s.claims, err = meter.Int64Counter("tqg.claim_lookups",
		otelmetric.WithDescription("Duplicate claim store lookups by result")); err != nil {
		return nil, fmt.Errorf("metrics: claims counter: %w", err)
	}
	if s.folds, err = meter.Int64Counter("tqg.content_folds",
		otelmetric.WithDescription("Near-duplicate index folds by kind")); err != nil {
		return nil, fmt.Errorf("metrics: folds counter: %w", err)
	}
	if s.duration, err = meter.Float64Histogram("tqg.classify_duration_ms",
		otelmetric.WithDescription("End-to-end classification duration"),
		otelmetric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("metrics: duration histogram: %w", err)
	}
	return s, nil
}

func (s *OTelSink) IncOutcome(decision domain.Decision) {
	s.outcomes.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("decision", string(decision))))
}

func (s *OTelSink) IncRejection(code domain.ReasonCode) {
	s.rejections.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("reason", string(code))))
}

func (s *OTelSink) IncWarning(code domain.WarningCode) {
	s.warnings.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("warning", string(code))))
}

func (s *OTelSink) IncClaim(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.claims.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("result", result)))
}

func (s *OTelSink) IncFold(kind string) {
	s.folds.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("kind", kind)))
}

func (s *OTelSink) ObserveClassifyDuration(d time.Duration) {
	s.duration.Record(context.Background(), float64(d.Microseconds())/1000.0)
}
