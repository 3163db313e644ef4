package metrics

import (
	"time"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// Multi fans out to several sinks (e.g. OTel push and Prometheus scrape).
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) IncOutcome(d domain.Decision) {
	for _, s := range m {
		s.IncOutcome(d)
	}
}

func (m multiSink) IncRejection(c domain.ReasonCode) {
	for _, s := range m {
		s.IncRejection(c)
	}
}

func (m multiSink) IncWarning(c domain.WarningCode) {
	for _, s := range m {
		s.IncWarning(c)
	}
}

func (m multiSink) IncClaim(hit bool) {
	for _, s := range m {
		s.IncClaim(hit)
	}
}

func (m multiSink) IncFold(kind string) {
	for _, s := range m {
		s.IncFold(kind)
	}
}

func (m multiSink) ObserveClassifyDuration(d time.Duration) {
	for _, s := range m {
		s.ObserveClassifyDuration(d)
	}
}
