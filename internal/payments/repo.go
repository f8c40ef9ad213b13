package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// Repository manages reconciled production payments. Rows only land here
// through promotion; nothing in the pipeline updates amounts after the
// fact.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.Payment) error
	Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.Payment, error)
	FindByReference(ctx context.Context, sourcePaymentID, paymentIntentID string) (*models.Payment, error)
	ListWithoutInvoice(ctx context.Context, from, to *time.Time, limit int) ([]models.Payment, error)
	MarkInvoiced(ctx context.Context, id uuid.UUID, invoiceNumber string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, row *models.Payment) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("source = ? AND source_payment_id = ?", source, sourcePaymentID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var row models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.Payment, error) {
	var row models.Payment
	err := r.db.WithContext(ctx).
		Where("source = ? AND source_payment_id = ?", source, sourcePaymentID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByReference looks for a production payment by either identifier a
// registration can carry. Used by the pending-import sweep to see whether
// a payment has arrived since the registration was staged.
func (r *repository) FindByReference(ctx context.Context, sourcePaymentID, paymentIntentID string) (*models.Payment, error) {
	query := r.db.WithContext(ctx)
	switch {
	case sourcePaymentID != "" && paymentIntentID != "":
		query = query.Where("source_payment_id IN ? OR payment_intent_id IN ?",
			[]string{sourcePaymentID, paymentIntentID},
			[]string{sourcePaymentID, paymentIntentID})
	case sourcePaymentID != "":
		query = query.Where("source_payment_id = ? OR payment_intent_id = ?", sourcePaymentID, sourcePaymentID)
	case paymentIntentID != "":
		query = query.Where("source_payment_id = ? OR payment_intent_id = ?", paymentIntentID, paymentIntentID)
	default:
		return nil, nil
	}

	var row models.Payment
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListWithoutInvoice(ctx context.Context, from, to *time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	query := r.db.WithContext(ctx).
		Where("invoice_created = ? AND registration_id IS NOT NULL", false).
		Order("payment_date ASC")
	if from != nil {
		query = query.Where("payment_date >= ?", *from)
	}
	if to != nil {
		query = query.Where("payment_date < ?", *to)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkInvoiced(ctx context.Context, id uuid.UUID, invoiceNumber string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"invoice_created": true,
			"invoice_number":  invoiceNumber,
		}).Error
}
