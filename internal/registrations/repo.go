package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/db/models"
)

// Repository manages reconciled production registrations. Promotion never
// overwrites an existing row; production data wins over staged data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.Registration, error)
	GetByConfirmationNumber(ctx context.Context, confirmationNumber string) (*models.Registration, error)
	LinkPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error
	SetInvoiceNumbers(ctx context.Context, id uuid.UUID, customerInvoice, supplierInvoice string) error
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

func (r *repository) Insert(ctx context.Context, row *models.Registration) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var row models.Registration
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.Registration, error) {
	var row models.Registration
	err := r.db.WithContext(ctx).Where("registration_id = ?", registrationID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByConfirmationNumber(ctx context.Context, confirmationNumber string) (*models.Registration, error) {
	var row models.Registration
	err := r.db.WithContext(ctx).Where("confirmation_number = ?", confirmationNumber).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) LinkPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND payment_id IS NULL", id).
		Updates(map[string]any{
			"payment_id":       paymentID,
			"payment_verified": true,
		}).Error
}

func (r *repository) SetInvoiceNumbers(ctx context.Context, id uuid.UUID, customerInvoice, supplierInvoice string) error {
	return r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"customer_invoice_number": customerInvoice,
			"supplier_invoice_number": supplierInvoice,
		}).Error
}
