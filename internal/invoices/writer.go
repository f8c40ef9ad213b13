package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/internal/payments"
	"github.com/lodgetix/reconcile/internal/registrations"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/outbox"
	"github.com/lodgetix/reconcile/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IssueResult reports the invoice pair written for one payment.
type IssueResult struct {
	CustomerInvoiceNumber string `json:"customer_invoice_number"`
	SupplierInvoiceNumber string `json:"supplier_invoice_number"`
	LedgerRows            int    `json:"ledger_rows"`
	Regenerated           bool   `json:"regenerated"`
}

// Writer commits a validated invoice pair atomically: both invoice rows,
// their ledger rows, the payment and registration updates, and the
// issuance event all land in one transaction or not at all.
type Writer struct {
	cfg       config.InvoiceConfig
	logg      *logger.Logger
	db        txRunner
	invoices  Repository
	ledger    TransactionRepository
	allocator *Allocator
	payments  payments.Repository
	regs      registrations.Repository
	outbox    outboxEmitter
	now       func() time.Time
}

// WriterParams wires the writer dependencies.
type WriterParams struct {
	Config        config.InvoiceConfig
	Logger        *logger.Logger
	DB            txRunner
	Invoices      Repository
	Ledger        TransactionRepository
	Allocator     *Allocator
	Payments      payments.Repository
	Registrations registrations.Repository
	Outbox        outboxEmitter
	Now           func() time.Time
}

// NewWriter validates the dependencies and returns a writer.
func NewWriter(params WriterParams) (*Writer, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Invoices == nil || params.Ledger == nil {
		return nil, errors.New("invoice and ledger repositories are required")
	}
	if params.Allocator == nil {
		return nil, errors.New("allocator is required")
	}
	if params.Payments == nil || params.Registrations == nil {
		return nil, errors.New("payment and registration repositories are required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Writer{
		cfg:       params.Config,
		logg:      params.Logger,
		db:        params.DB,
		invoices:  params.Invoices,
		ledger:    params.Ledger,
		allocator: params.Allocator,
		payments:  params.Payments,
		regs:      params.Registrations,
		outbox:    params.Outbox,
		now:       now,
	}, nil
}

// Issue writes the invoice pair. With regenerate set and a number already
// stamped on the payment, the existing number is reused and the previous
// rows replaced, so retries never leak sequence values.
func (w *Writer) Issue(ctx context.Context, input ComposeInput, customer, supplier *Draft, regenerate bool) (*IssueResult, error) {
	payment := input.Payment
	reg := input.Registration

	issued := w.now()
	due := issued.AddDate(0, 0, w.cfg.DueDays)

	result := &IssueResult{}
	err := w.db.WithTx(ctx, func(tx *gorm.DB) error {
		invoicesTx := w.invoices.WithTx(tx)
		ledgerTx := w.ledger.WithTx(tx)

		customerNumber, supplierNumber, regenerated, err := w.resolveNumbers(ctx, tx, payment, regenerate, issued)
		if err != nil {
			return err
		}
		result.CustomerInvoiceNumber = customerNumber
		result.SupplierInvoiceNumber = supplierNumber
		result.Regenerated = regenerated

		if regenerated {
			if err := ledgerTx.DeleteByPaymentID(ctx, payment.ID); err != nil {
				return fmt.Errorf("clearing previous ledger rows: %w", err)
			}
			if err := invoicesTx.DeleteByPaymentID(ctx, payment.ID); err != nil {
				return fmt.Errorf("clearing previous invoices: %w", err)
			}
		}

		customerRow, err := w.buildInvoice(customer, customerNumber, payment, reg, issued, due)
		if err != nil {
			return err
		}
		if err := invoicesTx.Insert(ctx, customerRow); err != nil {
			return fmt.Errorf("inserting customer invoice: %w", err)
		}

		supplierRow, err := w.buildInvoice(supplier, supplierNumber, payment, reg, issued, due)
		if err != nil {
			return err
		}
		supplierRow.RelatedInvoiceID = &customerRow.ID
		if err := invoicesTx.Insert(ctx, supplierRow); err != nil {
			return fmt.Errorf("inserting supplier invoice: %w", err)
		}

		rows, err := w.ledgerRows(ctx, tx, payment, reg, customerRow, customer, supplierRow, supplier)
		if err != nil {
			return err
		}
		if err := ledgerTx.InsertBatch(ctx, rows); err != nil {
			return fmt.Errorf("inserting ledger rows: %w", err)
		}
		result.LedgerRows = len(rows)

		if err := w.payments.WithTx(tx).MarkInvoiced(ctx, payment.ID, customerNumber); err != nil {
			return fmt.Errorf("stamping payment: %w", err)
		}
		if err := w.regs.WithTx(tx).SetInvoiceNumbers(ctx, reg.ID, customerNumber, supplierNumber); err != nil {
			return fmt.Errorf("stamping registration: %w", err)
		}

		return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventInvoiceIssued,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   customerRow.ID,
			Version:       1,
			OccurredAt:    issued,
			Data: payloads.InvoiceIssuedEvent{
				PaymentID:             payment.ID,
				RegistrationID:        reg.RegistrationID,
				ConfirmationNumber:    reg.ConfirmationNumber,
				CustomerInvoiceNumber: customerNumber,
				SupplierInvoiceNumber: supplierNumber,
				Total:                 customer.Total.StringFixed(2),
				Currency:              customer.Currency,
				IssuedAt:              issued,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := w.logg.WithInvoiceNumber(w.logg.WithPaymentID(ctx, payment.SourcePaymentID), result.CustomerInvoiceNumber)
	w.logg.Info(logCtx, "invoice pair issued")
	return result, nil
}

// Preview reports the invoice numbers the next issuance would stamp on
// the payment, without allocating. Regenerate reuses the number already
// on the payment, so that case previews exactly.
func (w *Writer) Preview(ctx context.Context, payment *models.Payment, regenerate bool) (string, string, error) {
	if regenerate && payment.InvoiceNumber != nil && *payment.InvoiceNumber != "" {
		customerNumber := *payment.InvoiceNumber
		return customerNumber, w.allocator.SupplierNumberFor(customerNumber), nil
	}

	issued := w.now()
	sequence, err := w.allocator.PreviewSequence(ctx, issued)
	if err != nil {
		return "", "", fmt.Errorf("previewing invoice sequence: %w", err)
	}
	return w.allocator.CustomerNumber(issued, sequence), w.allocator.SupplierNumber(issued, sequence), nil
}

// resolveNumbers allocates a fresh sequence value or, on regenerate,
// reuses the number already stamped on the payment.
func (w *Writer) resolveNumbers(ctx context.Context, tx *gorm.DB, payment *models.Payment, regenerate bool, issued time.Time) (string, string, bool, error) {
	if regenerate && payment.InvoiceNumber != nil && *payment.InvoiceNumber != "" {
		customerNumber := *payment.InvoiceNumber
		return customerNumber, w.allocator.SupplierNumberFor(customerNumber), true, nil
	}

	sequence, err := w.allocator.NextSequence(ctx, tx, issued)
	if err != nil {
		return "", "", false, err
	}
	return w.allocator.CustomerNumber(issued, sequence), w.allocator.SupplierNumber(issued, sequence), false, nil
}

func (w *Writer) buildInvoice(draft *Draft, number string, payment *models.Payment, reg *models.Registration, issued, due time.Time) (*models.Invoice, error) {
	lines, err := json.Marshal(draft.Lines)
	if err != nil {
		return nil, fmt.Errorf("marshalling line items: %w", err)
	}
	return &models.Invoice{
		InvoiceNumber:  number,
		Type:           draft.Type,
		PaymentID:      payment.ID,
		RegistrationID: reg.ID,
		BillToName:     draft.BillToName,
		BillToEmail:    draft.BillToEmail,
		SupplierName:   draft.SupplierName,
		SupplierABN:    draft.SupplierABN,
		IssuedDate:     issued,
		DueDate:        due,
		Subtotal:       draft.Subtotal,
		ProcessingFees: draft.ProcessingFees,
		Total:          draft.Total,
		Currency:       draft.Currency,
		LineItems:      lines,
	}, nil
}

// ledgerRows flattens every priced line of both invoices into transaction
// rows, ids issued from the global sequence inside the same transaction.
func (w *Writer) ledgerRows(ctx context.Context, tx *gorm.DB, payment *models.Payment, reg *models.Registration, customerRow *models.Invoice, customer *Draft, supplierRow *models.Invoice, supplier *Draft) ([]models.Transaction, error) {
	var rows []models.Transaction

	appendDraft := func(invoice *models.Invoice, draft *Draft) error {
		for _, line := range flattenPriced(draft.Lines) {
			id, err := w.allocator.NextLedgerID(ctx, tx)
			if err != nil {
				return err
			}
			rows = append(rows, models.Transaction{
				ID:                 id,
				InvoiceNumber:      invoice.InvoiceNumber,
				InvoiceType:        draft.Type,
				PaymentID:          payment.ID,
				RegistrationID:     reg.RegistrationID,
				ConfirmationNumber: reg.ConfirmationNumber,
				Description:        line.Description,
				Quantity:           line.Quantity,
				UnitPrice:          *line.UnitPrice,
				Amount:             *line.Amount,
				CustomerEmail:      payment.CustomerEmail,
			})
		}
		return nil
	}

	if err := appendDraft(customerRow, customer); err != nil {
		return nil, err
	}
	if err := appendDraft(supplierRow, supplier); err != nil {
		return nil, err
	}
	return rows, nil
}

// flattenPriced walks the line tree and returns the priced leaves, each
// prefixed with its parent's description for readable ledger rows.
func flattenPriced(lines []LineItem) []LineItem {
	var out []LineItem
	for _, line := range lines {
		if line.Priced() {
			out = append(out, line)
		}
		for _, sub := range line.SubItems {
			if !sub.Priced() {
				continue
			}
			flattened := sub
			if line.Description != "" {
				flattened.Description = line.Description + " - " + sub.Description
			}
			out = append(out, flattened)
		}
	}
	return out
}
