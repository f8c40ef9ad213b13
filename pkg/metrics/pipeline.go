package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts reconciliation pipeline outcomes by stage.
type PipelineMetrics struct {
	imported  *prometheus.CounterVec
	processed *prometheus.CounterVec
	invoices  *prometheus.CounterVec
	orphans   prometheus.Counter
}

// NewPipelineMetrics registers the reconciliation counters on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	imported := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_payments_imported_total",
		Help: "Gateway payments staged for reconciliation.",
	}, []string{"source"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_payments_processed_total",
		Help: "Staged payments processed, labelled by outcome.",
	}, []string{"status"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_invoices_issued_total",
		Help: "Invoices issued, labelled by type.",
	}, []string{"type"})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_registrations_orphaned_total",
		Help: "Registrations flagged without a matching payment.",
	})
	reg.MustRegister(imported, processed, invoices, orphans)
	return &PipelineMetrics{
		imported:  imported,
		processed: processed,
		invoices:  invoices,
		orphans:   orphans,
	}
}

// IncImported counts one staged payment for the given source.
func (p *PipelineMetrics) IncImported(source string) {
	if p == nil || p.imported == nil {
		return
	}
	p.imported.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncProcessed counts one processed staged payment by outcome.
func (p *PipelineMetrics) IncProcessed(status string) {
	if p == nil || p.processed == nil {
		return
	}
	p.processed.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncInvoiceIssued counts one issued invoice by type.
func (p *PipelineMetrics) IncInvoiceIssued(invoiceType string) {
	if p == nil || p.invoices == nil {
		return
	}
	p.invoices.WithLabelValues(normalizeLabel(invoiceType)).Inc()
}

// IncOrphaned counts one registration flagged as orphaned.
func (p *PipelineMetrics) IncOrphaned() {
	if p == nil || p.orphans == nil {
		return
	}
	p.orphans.Inc()
}
