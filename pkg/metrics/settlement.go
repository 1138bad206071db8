package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes of balance settlement attempts and the
// latency of the external services they call.
type SettlementMetrics struct {
	settlements  *prometheus.CounterVec
	externalCall *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_attempts_total",
		Help: "Settlement attempts by disposition and outcome.",
	}, []string{"disposition", "outcome"})
	externalCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_external_call_seconds",
		Help:    "Duration of calls to settlement partner services in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
	reg.MustRegister(settlements, externalCall)
	return &SettlementMetrics{
		settlements:  settlements,
		externalCall: externalCall,
	}
}

// IncSettlement counts one settlement attempt for a disposition and outcome.
func (s *SettlementMetrics) IncSettlement(disposition, outcome string) {
	if s == nil || s.settlements == nil {
		return
	}
	s.settlements.WithLabelValues(normalizeLabel(disposition), normalizeLabel(outcome)).Inc()
}

// ObserveExternalCall records the duration of a partner service call.
func (s *SettlementMetrics) ObserveExternalCall(service string, duration time.Duration) {
	if s == nil || s.externalCall == nil {
		return
	}
	s.externalCall.WithLabelValues(normalizeLabel(service)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
