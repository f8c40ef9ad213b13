package pendingimports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
)

type fakePendingRepo struct {
	rows    []models.PendingImport
	checked map[uuid.UUID]int
	deleted map[uuid.UUID]bool
}

func newFakePendingRepo(rows ...models.PendingImport) *fakePendingRepo {
	return &fakePendingRepo{rows: rows, checked: map[uuid.UUID]int{}, deleted: map[uuid.UUID]bool{}}
}

func (f *fakePendingRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePendingRepo) Enqueue(ctx context.Context, row *models.PendingImport) error {
	for _, existing := range f.rows {
		if existing.RegistrationImportID == row.RegistrationImportID {
			return nil
		}
	}
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakePendingRepo) GetByRegistrationImportID(ctx context.Context, registrationImportID uuid.UUID) (*models.PendingImport, error) {
	return nil, nil
}

func (f *fakePendingRepo) List(ctx context.Context, limit int) ([]models.PendingImport, error) {
	return f.rows, nil
}

func (f *fakePendingRepo) RecordCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	f.checked[id]++
	return nil
}

func (f *fakePendingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted[id] = true
	return nil
}

type fakeFailedRepo struct {
	rows []*models.FailedRegistration
}

func (f *fakeFailedRepo) WithTx(tx *gorm.DB) FailedRegistrationRepository { return f }

func (f *fakeFailedRepo) Insert(ctx context.Context, row *models.FailedRegistration) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeFailedRepo) List(ctx context.Context, limit int) ([]models.FailedRegistration, error) {
	return nil, nil
}

type fakeStagedRegs struct {
	byID map[uuid.UUID]*models.RegistrationImport
}

func (f *fakeStagedRegs) GetByID(ctx context.Context, id uuid.UUID) (*models.RegistrationImport, error) {
	return f.byID[id], nil
}

type fakePaymentFinder struct {
	byRef map[string]*models.Payment
}

func (f *fakePaymentFinder) FindByReference(ctx context.Context, sourcePaymentID, paymentIntentID string) (*models.Payment, error) {
	if row, ok := f.byRef[sourcePaymentID]; ok && sourcePaymentID != "" {
		return row, nil
	}
	if row, ok := f.byRef[paymentIntentID]; ok && paymentIntentID != "" {
		return row, nil
	}
	return nil, nil
}

type fakePromoter struct {
	promoted []uuid.UUID
}

func (f *fakePromoter) PromoteRegistration(ctx context.Context, stagedReg *models.RegistrationImport, payment *models.Payment) error {
	f.promoted = append(f.promoted, stagedReg.RegistrationID)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reconcile.BatchSize = 50
	cfg.Reconcile.MaxPendingChecks = 4
	return cfg
}

func newTestService(t *testing.T, pending *fakePendingRepo, regs *fakeStagedRegs, finder *fakePaymentFinder, promoter *fakePromoter, failed *fakeFailedRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:              testConfig(),
		Logger:              logger.New(logger.Options{ServiceName: "pending-test"}),
		DB:                  fakeTxRunner{},
		Pending:             pending,
		Failed:              failed,
		RegistrationImports: regs,
		Payments:            finder,
		Promoter:            promoter,
	})
	require.NoError(t, err)
	return svc
}

func pendingEntry(regImportID uuid.UUID, checkCount int) models.PendingImport {
	return models.PendingImport{
		ID:                   uuid.New(),
		RegistrationImportID: regImportID,
		ConfirmationNumber:   "LDG-300001",
		Reason:               "payment not yet verified",
		CheckCount:           checkCount,
	}
}

func stagedReg(id uuid.UUID, intentID string) *models.RegistrationImport {
	reg := &models.RegistrationImport{
		ID:                 id,
		RegistrationID:     uuid.New(),
		ConfirmationNumber: "LDG-300001",
		RegistrationType:   enums.RegistrationTypeLodge,
		Data:               dbtypes.JSONMap{},
	}
	if intentID != "" {
		reg.StripePaymentIntentID = &intentID
	}
	return reg
}

func TestSweepPromotesWhenPaymentArrived(t *testing.T) {
	regImportID := uuid.New()
	reg := stagedReg(regImportID, "pi_arrived")
	pending := newFakePendingRepo(pendingEntry(regImportID, 1))
	promoter := &fakePromoter{}
	finder := &fakePaymentFinder{byRef: map[string]*models.Payment{
		"pi_arrived": {ID: uuid.New()},
	}}

	svc := newTestService(t, pending, &fakeStagedRegs{byID: map[uuid.UUID]*models.RegistrationImport{regImportID: reg}}, finder, promoter, &fakeFailedRepo{})

	summary, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Promoted)
	assert.Len(t, promoter.promoted, 1)
	assert.True(t, pending.deleted[pending.rows[0].ID])
}

func TestSweepIncrementsCheckCountBelowCeiling(t *testing.T) {
	regImportID := uuid.New()
	reg := stagedReg(regImportID, "pi_waiting")
	entry := pendingEntry(regImportID, 0)
	pending := newFakePendingRepo(entry)

	svc := newTestService(t, pending, &fakeStagedRegs{byID: map[uuid.UUID]*models.RegistrationImport{regImportID: reg}}, &fakePaymentFinder{}, &fakePromoter{}, &fakeFailedRepo{})

	summary, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, pending.checked[entry.ID])
}

func TestSweepRetiresAtCeiling(t *testing.T) {
	regImportID := uuid.New()
	reg := stagedReg(regImportID, "pi_never")
	entry := pendingEntry(regImportID, 3)
	pending := newFakePendingRepo(entry)
	failed := &fakeFailedRepo{}

	svc := newTestService(t, pending, &fakeStagedRegs{byID: map[uuid.UUID]*models.RegistrationImport{regImportID: reg}}, &fakePaymentFinder{}, &fakePromoter{}, failed)

	summary, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, failed.rows, 1)
	assert.Equal(t, 4, failed.rows[0].CheckCount)
	assert.True(t, pending.deleted[entry.ID])
}

func TestSweepDropsEntryWhenStagingRowProcessed(t *testing.T) {
	regImportID := uuid.New()
	reg := stagedReg(regImportID, "")
	reg.Processed = true
	entry := pendingEntry(regImportID, 0)
	pending := newFakePendingRepo(entry)

	svc := newTestService(t, pending, &fakeStagedRegs{byID: map[uuid.UUID]*models.RegistrationImport{regImportID: reg}}, &fakePaymentFinder{}, &fakePromoter{}, &fakeFailedRepo{})

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, pending.deleted[entry.ID])
}

func TestEnqueueIsIdempotent(t *testing.T) {
	pending := newFakePendingRepo()
	reg := stagedReg(uuid.New(), "")

	svc := newTestService(t, pending, &fakeStagedRegs{byID: map[uuid.UUID]*models.RegistrationImport{}}, &fakePaymentFinder{}, &fakePromoter{}, &fakeFailedRepo{})

	require.NoError(t, svc.Enqueue(context.Background(), reg, "payment not yet verified"))
	require.NoError(t, svc.Enqueue(context.Background(), reg, "payment not yet verified"))
	assert.Len(t, pending.rows, 1)
}
