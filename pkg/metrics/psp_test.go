package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPSPMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPSPMetrics(reg)
	metrics.ObserveDuration("payments", 250*time.Millisecond)
	metrics.IncResultCode("payments", "Authorised")
	metrics.IncResultCode("payments", "Authorised")
	metrics.IncFailure("payments", "upstream")
	metrics.SetBreakerState("adyen", 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "psp_result_codes_total", "result_code", "Authorised"); err != nil {
		t.Fatalf("fetch result codes: %v", err)
	} else if got != 2 {
		t.Fatalf("expected Authorised=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "psp_failures_total", "reason", "upstream"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "psp_request_duration_seconds", "operation", "payments"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	mf := findMetricFamily(mfs, "psp_breaker_state")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected breaker gauge at 2")
	}
}

func TestPSPMetricsNilSafe(t *testing.T) {
	var m *PSPMetrics
	m.ObserveDuration("sessions", time.Second)
	m.IncResultCode("sessions", "")
	m.IncFailure("sessions", "")
	m.SetBreakerState("", 0)

	unregistered := NewPSPMetrics(nil)
	unregistered.IncFailure("sessions", "transport")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
