package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSettlementMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSettlementMetrics(reg)
	metrics.IncSettlement("giftcard", "success")
	metrics.IncSettlement("giftcard", "success")
	metrics.IncSettlement("donation", "failure")
	metrics.ObserveExternalCall("giftcard_issuer", 420*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "settlement_attempts_total", "disposition", "giftcard"); err != nil {
		t.Fatalf("fetch giftcard attempts: %v", err)
	} else if got != 2 {
		t.Fatalf("expected giftcard attempts=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "settlement_attempts_total", "disposition", "donation"); err != nil {
		t.Fatalf("fetch donation attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected donation attempts=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "settlement_external_call_seconds", "service", "giftcard_issuer"); err != nil {
		t.Fatalf("fetch external call duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestSettlementMetricsNilReceiversAreSafe(t *testing.T) {
	var metrics *SettlementMetrics
	metrics.IncSettlement("tip", "success")
	metrics.ObserveExternalCall("donation_processor", time.Second)

	unregistered := NewSettlementMetrics(nil)
	unregistered.IncSettlement("", "")
	unregistered.ObserveExternalCall("", 0)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	total := 0.0
	found := false
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			total += metric.GetCounter().GetValue()
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return total, nil
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
