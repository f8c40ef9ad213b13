package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/internal/payments"
	"github.com/lodgetix/reconcile/internal/registrations"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeInvoiceRepo struct {
	rows    []*models.Invoice
	deleted []uuid.UUID
}

func (f *fakeInvoiceRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeInvoiceRepo) Insert(ctx context.Context, row *models.Invoice) error {
	row.ID = uuid.New()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeInvoiceRepo) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) GetByPaymentID(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error {
	f.deleted = append(f.deleted, paymentID)
	return nil
}

type fakeLedgerRepo struct {
	rows    []models.Transaction
	deleted []uuid.UUID
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) TransactionRepository { return f }

func (f *fakeLedgerRepo) InsertBatch(ctx context.Context, rows []models.Transaction) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeLedgerRepo) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error {
	f.deleted = append(f.deleted, paymentID)
	return nil
}

type fakeCounterRepo struct {
	values map[string]int64
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{values: map[string]int64{}}
}

func (f *fakeCounterRepo) WithTx(tx *gorm.DB) CounterRepository { return f }

func (f *fakeCounterRepo) Next(ctx context.Context, name string) (int64, error) {
	f.values[name]++
	return f.values[name], nil
}

func (f *fakeCounterRepo) Current(ctx context.Context, name string) (int64, error) {
	return f.values[name], nil
}

type fakePaymentsRepo struct {
	byID     map[uuid.UUID]*models.Payment
	pending  []models.Payment
	invoiced map[uuid.UUID]string
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{byID: map[uuid.UUID]*models.Payment{}, invoiced: map[uuid.UUID]string{}}
}

func (f *fakePaymentsRepo) WithTx(tx *gorm.DB) payments.Repository { return f }

func (f *fakePaymentsRepo) Insert(ctx context.Context, row *models.Payment) error { return nil }

func (f *fakePaymentsRepo) Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error) {
	return false, nil
}

func (f *fakePaymentsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return f.byID[id], nil
}

func (f *fakePaymentsRepo) GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentsRepo) FindByReference(ctx context.Context, sourcePaymentID, paymentIntentID string) (*models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentsRepo) ListWithoutInvoice(ctx context.Context, from, to *time.Time, limit int) ([]models.Payment, error) {
	return f.pending, nil
}

func (f *fakePaymentsRepo) MarkInvoiced(ctx context.Context, id uuid.UUID, invoiceNumber string) error {
	f.invoiced[id] = invoiceNumber
	return nil
}

type fakeRegsRepo struct {
	byID    map[uuid.UUID]*models.Registration
	stamped map[uuid.UUID][2]string
}

func newFakeRegsRepo() *fakeRegsRepo {
	return &fakeRegsRepo{byID: map[uuid.UUID]*models.Registration{}, stamped: map[uuid.UUID][2]string{}}
}

func (f *fakeRegsRepo) WithTx(tx *gorm.DB) registrations.Repository { return f }

func (f *fakeRegsRepo) Insert(ctx context.Context, row *models.Registration) error { return nil }

func (f *fakeRegsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return f.byID[id], nil
}

func (f *fakeRegsRepo) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.Registration, error) {
	return nil, nil
}

func (f *fakeRegsRepo) GetByConfirmationNumber(ctx context.Context, confirmationNumber string) (*models.Registration, error) {
	return nil, nil
}

func (f *fakeRegsRepo) LinkPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	return nil
}

func (f *fakeRegsRepo) SetInvoiceNumbers(ctx context.Context, id uuid.UUID, customerInvoice, supplierInvoice string) error {
	f.stamped[id] = [2]string{customerInvoice, supplierInvoice}
	return nil
}

type fakeTicketLister struct {
	rows []models.Ticket
}

func (f *fakeTicketLister) ListByRegistrationID(ctx context.Context, registrationID uuid.UUID) ([]models.Ticket, error) {
	return f.rows, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type invoiceFixture struct {
	svc      Service
	payment  *models.Payment
	reg      *models.Registration
	invoices *fakeInvoiceRepo
	ledger   *fakeLedgerRepo
	counters *fakeCounterRepo
	pays     *fakePaymentsRepo
	regs     *fakeRegsRepo
	outboxF  *fakeOutbox
}

var issuedAt = time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)

func newInvoiceFixture(t *testing.T, ticketRows []models.Ticket) *invoiceFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Invoice = testInvoiceConfig()
	cfg.Reconcile.BatchSize = 50

	logg := logger.New(logger.Options{ServiceName: "invoices-test"})

	f := &invoiceFixture{
		invoices: &fakeInvoiceRepo{},
		ledger:   &fakeLedgerRepo{},
		counters: newFakeCounterRepo(),
		pays:     newFakePaymentsRepo(),
		regs:     newFakeRegsRepo(),
		outboxF:  &fakeOutbox{},
	}

	input := composeFixture(21.47, ticketRows)
	f.payment = input.Payment
	f.reg = input.Registration
	f.pays.byID[f.payment.ID] = f.payment
	f.regs.byID[f.reg.ID] = f.reg

	allocator := NewAllocator(f.counters, cfg.Invoice)
	composer, err := NewComposer(cfg.Invoice)
	require.NoError(t, err)

	writer, err := NewWriter(WriterParams{
		Config:        cfg.Invoice,
		Logger:        logg,
		DB:            fakeTxRunner{},
		Invoices:      f.invoices,
		Ledger:        f.ledger,
		Allocator:     allocator,
		Payments:      f.pays,
		Registrations: f.regs,
		Outbox:        f.outboxF,
		Now:           func() time.Time { return issuedAt },
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		Payments:      f.pays,
		Registrations: f.regs,
		Tickets:       &fakeTicketLister{rows: ticketRows},
		Composer:      composer,
		Writer:        writer,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestProcessInvoiceIssuesPair(t *testing.T) {
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})

	outcome, err := f.svc.ProcessInvoice(context.Background(), f.payment.ID, ProcessParams{})
	require.NoError(t, err)
	require.Empty(t, outcome.Error)

	assert.Equal(t, "LTIV-2508-0001", outcome.CustomerInvoiceNumber)
	assert.Equal(t, "LTSP-2508-0001", outcome.SupplierInvoiceNumber)

	require.Len(t, f.invoices.rows, 2)
	assert.Equal(t, enums.InvoiceTypeCustomer, f.invoices.rows[0].Type)
	assert.Equal(t, enums.InvoiceTypeSupplier, f.invoices.rows[1].Type)
	require.NotNil(t, f.invoices.rows[1].RelatedInvoiceID)
	assert.Equal(t, f.invoices.rows[0].ID, *f.invoices.rows[1].RelatedInvoiceID)

	// One priced ticket leaf plus the two supplier lines.
	require.Len(t, f.ledger.rows, 3)
	assert.Equal(t, int64(1), f.ledger.rows[0].ID)
	assert.Equal(t, int64(3), f.ledger.rows[2].ID)
	assert.Equal(t, "LTIV-2508-0001", f.ledger.rows[0].InvoiceNumber)
	assert.Equal(t, "LTSP-2508-0001", f.ledger.rows[1].InvoiceNumber)

	assert.Equal(t, "LTIV-2508-0001", f.pays.invoiced[f.payment.ID])
	assert.Equal(t, [2]string{"LTIV-2508-0001", "LTSP-2508-0001"}, f.regs.stamped[f.reg.ID])

	require.Len(t, f.outboxF.events, 1)
	assert.Equal(t, enums.OutboxEventInvoiceIssued, f.outboxF.events[0].EventType)
}

func TestProcessInvoiceShortCircuitsWhenAlreadyInvoiced(t *testing.T) {
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})
	existing := "LTIV-2507-0009"
	f.payment.InvoiceCreated = true
	f.payment.InvoiceNumber = &existing

	outcome, err := f.svc.ProcessInvoice(context.Background(), f.payment.ID, ProcessParams{})
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, existing, outcome.CustomerInvoiceNumber)
	assert.Empty(t, f.invoices.rows)
	assert.Empty(t, f.counters.values, "no sequence value may leak on a skip")
}

func TestProcessInvoiceDryRunWritesNothing(t *testing.T) {
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})

	outcome, err := f.svc.ProcessInvoice(context.Background(), f.payment.ID, ProcessParams{DryRun: true})
	require.NoError(t, err)
	require.Empty(t, outcome.Error)
	assert.Empty(t, f.invoices.rows)
	assert.Empty(t, f.ledger.rows)
	assert.Empty(t, f.outboxF.events)

	// The dry run previews the numbers a real run would take without
	// consuming a sequence value.
	assert.Equal(t, "LTIV-2508-0001", outcome.CustomerInvoiceNumber)
	assert.Equal(t, "LTSP-2508-0001", outcome.SupplierInvoiceNumber)
	assert.Empty(t, f.counters.values, "previewing must not advance the counter")
}

func TestProcessInvoiceRegenerateReusesNumber(t *testing.T) {
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})
	existing := "LTIV-2507-0009"
	f.payment.InvoiceCreated = true
	f.payment.InvoiceNumber = &existing

	outcome, err := f.svc.ProcessInvoice(context.Background(), f.payment.ID, ProcessParams{Regenerate: true})
	require.NoError(t, err)
	require.Empty(t, outcome.Error)

	assert.Equal(t, "LTIV-2507-0009", outcome.CustomerInvoiceNumber)
	assert.Equal(t, "LTSP-2507-0009", outcome.SupplierInvoiceNumber)
	assert.Equal(t, []uuid.UUID{f.payment.ID}, f.invoices.deleted)
	assert.Equal(t, []uuid.UUID{f.payment.ID}, f.ledger.deleted)
	assert.Zero(t, f.counters.values["customer_invoice_2508"], "regenerate must not allocate a fresh sequence value")
}

func TestProcessInvoiceValidationBlocksWrite(t *testing.T) {
	// Itemized tickets exceed the gross charge.
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 50)})

	outcome, err := f.svc.ProcessInvoice(context.Background(), f.payment.ID, ProcessParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Error)
	assert.Empty(t, f.invoices.rows)
	assert.Empty(t, f.ledger.rows)
}

func TestProcessInvoicesBatch(t *testing.T) {
	f := newInvoiceFixture(t, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})
	f.pays.pending = []models.Payment{*f.payment}

	summary, err := f.svc.ProcessInvoices(context.Background(), ProcessParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Failed)
}

func TestProcessInvoicesRegenerateNeedsPaymentID(t *testing.T) {
	f := newInvoiceFixture(t, nil)

	_, err := f.svc.ProcessInvoices(context.Background(), ProcessParams{Regenerate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specific payment id")
}
