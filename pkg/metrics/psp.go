package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PSPMetrics records calls made to the payment service provider.
type PSPMetrics struct {
	duration    *prometheus.HistogramVec
	resultCodes *prometheus.CounterVec
	failures    *prometheus.CounterVec
	breaker     *prometheus.GaugeVec
}

// NewPSPMetrics registers the PSP metrics on the provided registerer.
func NewPSPMetrics(reg prometheus.Registerer) *PSPMetrics {
	if reg == nil {
		return &PSPMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psp_request_duration_seconds",
		Help:    "Duration of PSP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	resultCodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "psp_result_codes_total",
		Help: "Result codes returned by the PSP.",
	}, []string{"operation", "result_code"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "psp_failures_total",
		Help: "Failed PSP requests by reason.",
	}, []string{"operation", "reason"})
	breaker := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "psp_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
	reg.MustRegister(duration, resultCodes, failures, breaker)
	return &PSPMetrics{
		duration:    duration,
		resultCodes: resultCodes,
		failures:    failures,
		breaker:     breaker,
	}
}

// ObserveDuration records how long the named operation took.
func (m *PSPMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncResultCode counts a result code reported by the PSP.
func (m *PSPMetrics) IncResultCode(operation, resultCode string) {
	if m == nil || m.resultCodes == nil {
		return
	}
	m.resultCodes.WithLabelValues(normalizeLabel(operation), normalizeLabel(resultCode)).Inc()
}

// IncFailure counts a failed call; reason is a short token such as "upstream" or "breaker_open".
func (m *PSPMetrics) IncFailure(operation, reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(reason)).Inc()
}

// SetBreakerState publishes the breaker state as a number.
func (m *PSPMetrics) SetBreakerState(name string, state int) {
	if m == nil || m.breaker == nil {
		return
	}
	m.breaker.WithLabelValues(normalizeLabel(name)).Set(float64(state))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
