package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/bizdesk/internal/jobs"
)

func TestLedgerJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Cleanup runs are quick and always succeed.
	for i := 0; i < 40; i++ {
		tracker := metrics.Track("idempotency:cleanup")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending cleanup tracker: %v", err)
		}
	}

	// Reconcile runs are slower and occasionally time out.
	for i := 0; i < 30; i++ {
		tracker := metrics.Track("ledger:reconcile")
		time.Sleep(5 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending reconcile tracker: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		tracker := metrics.Track("ledger:reconcile")
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "bizdesk_jobs_total", map[string]string{"job": "ledger:reconcile", "status": "success"})
	failure := metricValue(t, families, "bizdesk_jobs_total", map[string]string{"job": "ledger:reconcile", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no reconcile executions recorded")
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("reconcile success ratio too low: %f", ratio)
	}

	if mean := histogramMean(t, families, "bizdesk_job_duration_seconds", map[string]string{"job": "ledger:reconcile"}); mean > 2.0 {
		t.Fatalf("reconcile duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "bizdesk_job_duration_seconds", map[string]string{"job": "idempotency:cleanup"}); mean > 0.5 {
		t.Fatalf("cleanup duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
