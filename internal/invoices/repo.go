package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// Repository manages issued invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.Invoice) error
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error)
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, error)
	DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error
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

func (r *repository) Insert(ctx context.Context, row *models.Invoice) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	var row models.Invoice
	err := r.db.WithContext(ctx).Where("invoice_number = ?", invoiceNumber).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, error) {
	var row models.Invoice
	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND type = ?", paymentID, invoiceType).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteByPaymentID clears both invoices for a payment. Only the
// regenerate path uses this, inside the same transaction that re-issues
// them.
func (r *repository) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Delete(&models.Invoice{}).Error
}

// TransactionRepository manages the flattened ledger rows.
type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	InsertBatch(ctx context.Context, rows []models.Transaction) error
	ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]models.Transaction, error)
	DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository returns a repository bound to the provided database.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) WithTx(tx *gorm.DB) TransactionRepository {
	if tx == nil {
		return r
	}
	return &transactionRepository{db: tx}
}

func (r *transactionRepository) InsertBatch(ctx context.Context, rows []models.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *transactionRepository) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *transactionRepository) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Delete(&models.Transaction{}).Error
}
