package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCartMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMetrics(reg)
	metrics.IncMutation("add_item", nil)
	metrics.IncMutation("add_item", nil)
	metrics.IncMutation("update_item", errors.New("boom"))
	metrics.ObservePersist("cookie", 250*time.Millisecond)
	metrics.IncPersistFailure("redis")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_mutations_total", map[string]string{"op": "add_item", "result": ResultOK}); err != nil {
		t.Fatalf("fetch mutations: %v", err)
	} else if got != 2 {
		t.Fatalf("expected add_item ok=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_mutations_total", map[string]string{"op": "update_item", "result": ResultError}); err != nil {
		t.Fatalf("fetch mutation errors: %v", err)
	} else if got != 1 {
		t.Fatalf("expected update_item error=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_persist_failures_total", map[string]string{"backend": "redis"}); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cart_persist_duration_seconds", map[string]string{"backend": "cookie"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var nilMetrics *CartMetrics
	nilMetrics.IncMutation("add_item", nil)
	nilMetrics.ObservePersist("cookie", time.Second)
	nilMetrics.IncPersistFailure("cookie")

	unregistered := NewCartMetrics(nil)
	unregistered.IncMutation("", errors.New("boom"))
	unregistered.IncPersistFailure("")
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatal("empty labels should normalize to unknown")
	}
	if normalizeLabel("memory") != "memory" {
		t.Fatal("non-empty labels should pass through")
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if pair.GetValue() != v {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
