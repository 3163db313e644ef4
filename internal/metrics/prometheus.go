package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// PrometheusSink records gate counters on a Prometheus registry, for
// deployments scraping /metrics instead of pushing OTLP.
type PrometheusSink struct {
	outcomes   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	claims     *prometheus.CounterVec
	folds      *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewPrometheusSink registers the gate collectors on reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tqg_outcomes_total",
			Help: "Terminal classifications by decision.",
		}, []string{"decision"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tqg_rejections_total",
			Help: "Hard rejects by reason code.",
		}, []string{"reason"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tqg_warnings_total",
			Help: "Soft warnings by class.",
		}, []string{"warning"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tqg_claim_lookups_total",
			Help: "Duplicate claim store lookups by result.",
		}, []string{"result"}),
		folds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tqg_content_folds_total",
			Help: "Near-duplicate index folds by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tqg_classify_duration_ms",
			Help:    "End-to-end classification duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	for _, c := range []prometheus.Collector{s.outcomes, s.rejections, s.warnings, s.claims, s.folds, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) IncOutcome(decision domain.Decision) {
	s.outcomes.WithLabelValues(string(decision)).Inc()
}

func (s *PrometheusSink) IncRejection(code domain.ReasonCode) {
	s.rejections.WithLabelValues(string(code)).Inc()
}

func (s *PrometheusSink) IncWarning(code domain.WarningCode) {
	s.warnings.WithLabelValues(string(code)).Inc()
}

func (s *PrometheusSink) IncClaim(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.claims.WithLabelValues(result).Inc()
}

func (s *PrometheusSink) IncFold(kind string) {
	s.folds.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) ObserveClassifyDuration(d time.Duration) {
	s.duration.Observe(float64(d.Microseconds()) / 1000.0)
}
