package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/internal/payments"
	"github.com/lodgetix/reconcile/internal/registrations"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/metrics"
)

// Service drives invoice issuance over reconciled payments.
type Service interface {
	ProcessInvoices(ctx context.Context, params ProcessParams) (*ProcessSummary, error)
	ProcessInvoice(ctx context.Context, paymentID uuid.UUID, params ProcessParams) (*PaymentOutcome, error)
}

// ProcessParams controls one issuance run.
type ProcessParams struct {
	DryRun     bool       `json:"dryRun"`
	Regenerate bool       `json:"regenerate"`
	DateFrom   *time.Time `json:"dateFrom,omitempty"`
	DateTo     *time.Time `json:"dateTo,omitempty"`
	PaymentID  *uuid.UUID `json:"specificPaymentId,omitempty"`
}

// PaymentOutcome reports issuance for one payment.
type PaymentOutcome struct {
	PaymentID             uuid.UUID `json:"payment_id"`
	CustomerInvoiceNumber string    `json:"customer_invoice_number,omitempty"`
	SupplierInvoiceNumber string    `json:"supplier_invoice_number,omitempty"`
	Skipped               bool      `json:"skipped,omitempty"`
	DryRun                bool      `json:"dry_run,omitempty"`
	Error                 string    `json:"error,omitempty"`
}

// ProcessSummary reports one issuance run.
type ProcessSummary struct {
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Outcomes  []PaymentOutcome `json:"outcomes,omitempty"`
	Errors    []string         `json:"errors,omitempty"`
}

type ticketLister interface {
	ListByRegistrationID(ctx context.Context, registrationID uuid.UUID) ([]models.Ticket, error)
}

// ServiceParams wires the invoice service dependencies.
type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	Payments      payments.Repository
	Registrations registrations.Repository
	Tickets       ticketLister
	Composer      *Composer
	Writer        *Writer
	Metrics       *metrics.PipelineMetrics
}

type service struct {
	cfg      *config.Config
	logg     *logger.Logger
	payments payments.Repository
	regs     registrations.Repository
	tickets  ticketLister
	composer *Composer
	writer   *Writer
	metrics  *metrics.PipelineMetrics
}

// NewService validates the dependencies and returns an invoice service.
func NewService(params ServiceParams) (Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Payments == nil || params.Registrations == nil || params.Tickets == nil {
		return nil, errors.New("payment, registration and ticket repositories are required")
	}
	if params.Composer == nil {
		return nil, errors.New("composer is required")
	}
	if params.Writer == nil {
		return nil, errors.New("writer is required")
	}

	return &service{
		cfg:      params.Config,
		logg:     params.Logger,
		payments: params.Payments,
		regs:     params.Registrations,
		tickets:  params.Tickets,
		composer: params.Composer,
		writer:   params.Writer,
		metrics:  params.Metrics,
	}, nil
}

// ProcessInvoices issues invoices for every eligible payment in the
// window. Failures are recorded per payment; the run continues.
func (s *service) ProcessInvoices(ctx context.Context, params ProcessParams) (*ProcessSummary, error) {
	if params.PaymentID != nil {
		outcome, err := s.ProcessInvoice(ctx, *params.PaymentID, params)
		if err != nil {
			return nil, err
		}
		return summaryFor(outcome, s.cfg.Invoice.MaxErrorMessages), nil
	}
	if params.Regenerate {
		return nil, errors.New("regenerate requires a specific payment id")
	}

	rows, err := s.payments.ListWithoutInvoice(ctx, params.DateFrom, params.DateTo, s.cfg.Reconcile.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing payments awaiting invoices: %w", err)
	}

	summary := &ProcessSummary{Total: len(rows)}
	for i := range rows {
		outcome := s.processPayment(ctx, &rows[i], params)
		record(summary, outcome, s.cfg.Invoice.MaxErrorMessages)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total":     summary.Total,
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"dry_run":   params.DryRun,
	}), "invoice run finished")
	return summary, nil
}

// ProcessInvoice issues the invoice pair for one payment.
func (s *service) ProcessInvoice(ctx context.Context, paymentID uuid.UUID, params ProcessParams) (*PaymentOutcome, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}

	outcome := s.processPayment(ctx, payment, params)
	return outcome, nil
}

func (s *service) processPayment(ctx context.Context, payment *models.Payment, params ProcessParams) *PaymentOutcome {
	outcome := &PaymentOutcome{PaymentID: payment.ID, DryRun: params.DryRun}
	logCtx := s.logg.WithPaymentID(ctx, payment.SourcePaymentID)

	// Idempotency: an already-invoiced payment short-circuits to its
	// existing number unless a regenerate was explicitly requested.
	if payment.InvoiceCreated && !params.Regenerate {
		outcome.Skipped = true
		if payment.InvoiceNumber != nil {
			outcome.CustomerInvoiceNumber = *payment.InvoiceNumber
		}
		return outcome
	}

	if payment.RegistrationID == nil {
		outcome.Error = "payment has no linked registration"
		return outcome
	}
	reg, err := s.regs.GetByID(ctx, *payment.RegistrationID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if reg == nil {
		outcome.Error = fmt.Sprintf("registration %s not found", payment.RegistrationID)
		return outcome
	}

	rows, err := s.tickets.ListByRegistrationID(ctx, reg.RegistrationID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	input := ComposeInput{Payment: payment, Registration: reg, Tickets: rows}
	customer, supplier, err := s.composer.Compose(input)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	validation := Validate(input, customer, supplier)
	for _, warning := range validation.Warnings() {
		s.logg.Warn(s.logg.WithField(logCtx, "finding", warning.String()), "invoice validation warning")
	}
	if !validation.Ok() {
		findings := validation.Errors()
		outcome.Error = fmt.Sprintf("validation failed: %s", findings[0].String())
		s.logg.Warn(s.logg.WithField(logCtx, "findings", len(findings)), "invoice blocked by validation")
		return outcome
	}

	if params.DryRun {
		customerNumber, supplierNumber, err := s.writer.Preview(ctx, payment, params.Regenerate)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		outcome.CustomerInvoiceNumber = customerNumber
		outcome.SupplierInvoiceNumber = supplierNumber
		return outcome
	}

	result, err := s.writer.Issue(ctx, input, customer, supplier, params.Regenerate)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.CustomerInvoiceNumber = result.CustomerInvoiceNumber
	outcome.SupplierInvoiceNumber = result.SupplierInvoiceNumber

	s.metrics.IncInvoiceIssued(enums.InvoiceTypeCustomer.String())
	s.metrics.IncInvoiceIssued(enums.InvoiceTypeSupplier.String())
	return outcome
}

func summaryFor(outcome *PaymentOutcome, maxErrors int) *ProcessSummary {
	summary := &ProcessSummary{Total: 1}
	record(summary, outcome, maxErrors)
	return summary
}

func record(summary *ProcessSummary, outcome *PaymentOutcome, maxErrors int) {
	summary.Outcomes = append(summary.Outcomes, *outcome)
	switch {
	case outcome.Error != "":
		summary.Failed++
		if len(summary.Errors) < maxErrors {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", outcome.PaymentID, outcome.Error))
		}
	case outcome.Skipped:
		summary.Skipped++
	default:
		summary.Processed++
	}
}
