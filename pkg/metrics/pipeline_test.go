package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)

	metrics.IncImported("square")
	metrics.IncImported("square")
	metrics.IncProcessed("imported")
	metrics.IncInvoiceIssued("customer")
	metrics.IncInvoiceIssued("supplier")
	metrics.IncOrphaned()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_payments_imported_total", "source", "square"); err != nil {
		t.Fatalf("fetch imported: %v", err)
	} else if got != 2 {
		t.Fatalf("expected imported=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_invoices_issued_total", "type", "supplier"); err != nil {
		t.Fatalf("fetch invoices: %v", err)
	} else if got != 1 {
		t.Fatalf("expected supplier invoices=1, got %f", got)
	}

	orphans := findMetricFamily(mfs, "reconcile_registrations_orphaned_total")
	if orphans == nil {
		t.Fatal("orphaned counter not found")
	}
	if got := orphans.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected orphaned=1, got %f", got)
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var metrics *PipelineMetrics
	metrics.IncImported("stripe")
	metrics.IncProcessed("failed")
	metrics.IncInvoiceIssued("customer")
	metrics.IncOrphaned()
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
