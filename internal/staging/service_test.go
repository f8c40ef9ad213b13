package staging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/outbox"
	pkgstripe "github.com/lodgetix/reconcile/pkg/stripe"
)

type fakePaymentImportRepo struct {
	mu       sync.Mutex
	existing map[string]bool
	inserted []*models.PaymentImport
}

func (f *fakePaymentImportRepo) WithTx(tx *gorm.DB) PaymentImportRepository { return f }

func (f *fakePaymentImportRepo) Insert(ctx context.Context, row *models.PaymentImport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, row)
	return nil
}

func (f *fakePaymentImportRepo) Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[sourcePaymentID], nil
}

func (f *fakePaymentImportRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentImport, error) {
	return nil, nil
}

func (f *fakePaymentImportRepo) GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.PaymentImport, error) {
	return nil, nil
}

func (f *fakePaymentImportRepo) ListUnprocessed(ctx context.Context, limit int) ([]models.PaymentImport, error) {
	return nil, nil
}

func (f *fakePaymentImportRepo) MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error {
	return nil
}

func (f *fakePaymentImportRepo) SetMatch(ctx context.Context, id uuid.UUID, registrationImportID uuid.UUID, method enums.MatchMethod, confidence int) error {
	return nil
}

type fakeRegistrationImportRepo struct {
	mu       sync.Mutex
	upserted []*models.RegistrationImport
}

func (f *fakeRegistrationImportRepo) WithTx(tx *gorm.DB) RegistrationImportRepository { return f }

func (f *fakeRegistrationImportRepo) Upsert(ctx context.Context, row *models.RegistrationImport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeRegistrationImportRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RegistrationImport, error) {
	return nil, nil
}

func (f *fakeRegistrationImportRepo) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.RegistrationImport, error) {
	return nil, nil
}

func (f *fakeRegistrationImportRepo) FindBySquarePaymentID(ctx context.Context, squarePaymentID string) ([]models.RegistrationImport, error) {
	return nil, nil
}

func (f *fakeRegistrationImportRepo) FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.RegistrationImport, error) {
	return nil, nil
}

func (f *fakeRegistrationImportRepo) ListUnprocessedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.RegistrationImport, error) {
	return nil, nil
}

func (f *fakeRegistrationImportRepo) MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error {
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeStripeLister struct {
	charges []*stripe.Charge
}

func (f *fakeStripeLister) ListCharges(ctx context.Context, params pkgstripe.ListChargesParams) ([]*stripe.Charge, error) {
	return f.charges, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reconcile.ImportConcurrency = 4
	cfg.Reconcile.ImportLookback = 7 * 24 * time.Hour
	cfg.Invoice.MaxErrorMessages = 10
	return cfg
}

func testService(t *testing.T, payments *fakePaymentImportRepo, registrations *fakeRegistrationImportRepo, lister stripeLister, emitter outboxEmitter) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "staging-test"})
	svc, err := NewService(ServiceParams{
		Config:        testConfig(),
		Logger:        logg,
		DB:            fakeTxRunner{},
		Payments:      payments,
		Registrations: registrations,
		Stripe:        lister,
		Outbox:        emitter,
	})
	require.NoError(t, err)
	return svc
}

func TestImportStripeChargesStagesAndSkips(t *testing.T) {
	payments := &fakePaymentImportRepo{existing: map[string]bool{"ch_existing": true}}
	registrations := &fakeRegistrationImportRepo{}
	emitter := &fakeOutbox{}
	lister := &fakeStripeLister{charges: []*stripe.Charge{
		{ID: "ch_new", Amount: 10000, Status: stripe.ChargeStatusSucceeded, Created: 1735689600},
		{ID: "ch_existing", Amount: 5000, Status: stripe.ChargeStatusSucceeded, Created: 1735689600},
		{ID: "", Amount: 100},
	}}

	svc := testService(t, payments, registrations, lister, emitter)
	summary, err := svc.ImportStripeCharges(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 1, summary.Staged)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, payments.inserted, 1)
	assert.Equal(t, "ch_new", payments.inserted[0].SourcePaymentID)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.OutboxEventPaymentImported, emitter.events[0].EventType)
}

func TestImportStripeChargesRequiresClient(t *testing.T) {
	svc := testService(t, &fakePaymentImportRepo{}, &fakeRegistrationImportRepo{}, nil, &fakeOutbox{})
	_, err := svc.ImportStripeCharges(context.Background(), nil)
	require.Error(t, err)
}

func TestIngestRegistrationsUpserts(t *testing.T) {
	registrations := &fakeRegistrationImportRepo{}
	svc := testService(t, &fakePaymentImportRepo{}, registrations, nil, &fakeOutbox{})

	docs := []RegistrationDocument{
		{
			RegistrationID:        uuid.New(),
			ConfirmationNumber:    "IND-100001",
			RegistrationType:      enums.RegistrationTypeIndividual,
			StripePaymentIntentID: "pi_1",
			TotalAmountPaid:       decimal.NewFromFloat(125.50),
			SubtotalAmount:        decimal.NewFromFloat(120),
		},
		{
			RegistrationID:     uuid.New(),
			ConfirmationNumber: "LDG-100002",
			RegistrationType:   enums.RegistrationTypeLodge,
			SquarePaymentID:    "sq_1",
		},
	}

	summary, err := svc.IngestRegistrations(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Received)
	assert.Equal(t, 2, summary.Staged)
	assert.Equal(t, 0, summary.Rejected)
	require.Len(t, registrations.upserted, 2)
	require.NotNil(t, registrations.upserted[0].StripePaymentIntentID)
	assert.Equal(t, "pi_1", *registrations.upserted[0].StripePaymentIntentID)
	assert.Nil(t, registrations.upserted[1].StripePaymentIntentID)
}
