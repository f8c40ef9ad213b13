package staging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// PaymentImportRepository manages persistence for staged gateway payments.
type PaymentImportRepository interface {
	WithTx(tx *gorm.DB) PaymentImportRepository
	Insert(ctx context.Context, row *models.PaymentImport) error
	Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentImport, error)
	GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.PaymentImport, error)
	ListUnprocessed(ctx context.Context, limit int) ([]models.PaymentImport, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error
	SetMatch(ctx context.Context, id uuid.UUID, registrationImportID uuid.UUID, method enums.MatchMethod, confidence int) error
}

type paymentImportRepository struct {
	db *gorm.DB
}

// NewPaymentImportRepository returns a repository bound to the provided database.
func NewPaymentImportRepository(db *gorm.DB) PaymentImportRepository {
	return &paymentImportRepository{db: db}
}

func (r *paymentImportRepository) WithTx(tx *gorm.DB) PaymentImportRepository {
	if tx == nil {
		return r
	}
	return &paymentImportRepository{db: tx}
}

func (r *paymentImportRepository) Insert(ctx context.Context, row *models.PaymentImport) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *paymentImportRepository) Exists(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentImport{}).
		Where("source = ? AND source_payment_id = ?", source, sourcePaymentID).
		Count(&count).Error
	return count > 0, err
}

func (r *paymentImportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentImport, error) {
	var row models.PaymentImport
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *paymentImportRepository) GetBySourcePaymentID(ctx context.Context, source enums.PaymentSource, sourcePaymentID string) (*models.PaymentImport, error) {
	var row models.PaymentImport
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

func (r *paymentImportRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.PaymentImport, error) {
	var rows []models.PaymentImport
	query := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("payment_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *paymentImportRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PaymentImport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":        true,
			"processed_status": status,
			"processed_at":     now,
			"processing_error": processingError,
		}).Error
}

func (r *paymentImportRepository) SetMatch(ctx context.Context, id uuid.UUID, registrationImportID uuid.UUID, method enums.MatchMethod, confidence int) error {
	return r.db.WithContext(ctx).Model(&models.PaymentImport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"matched_registration_id": registrationImportID,
			"match_method":            method,
			"match_confidence":        confidence,
			"matched_at":              time.Now().UTC(),
		}).Error
}

// RegistrationImportRepository manages persistence for staged registrations.
type RegistrationImportRepository interface {
	WithTx(tx *gorm.DB) RegistrationImportRepository
	Upsert(ctx context.Context, row *models.RegistrationImport) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RegistrationImport, error)
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.RegistrationImport, error)
	FindBySquarePaymentID(ctx context.Context, squarePaymentID string) ([]models.RegistrationImport, error)
	FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.RegistrationImport, error)
	ListUnprocessedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.RegistrationImport, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error
}

type registrationImportRepository struct {
	db *gorm.DB
}

// NewRegistrationImportRepository returns a repository bound to the provided database.
func NewRegistrationImportRepository(db *gorm.DB) RegistrationImportRepository {
	return &registrationImportRepository{db: db}
}

func (r *registrationImportRepository) WithTx(tx *gorm.DB) RegistrationImportRepository {
	if tx == nil {
		return r
	}
	return &registrationImportRepository{db: tx}
}

// Upsert refreshes the staged document on re-import but never resets the
// processing state of a row the pipeline already handled.
func (r *registrationImportRepository) Upsert(ctx context.Context, row *models.RegistrationImport) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "registration_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"import_id",
			"confirmation_number",
			"registration_type",
			"stripe_payment_intent_id",
			"square_payment_id",
			"primary_attendee_name",
			"primary_email",
			"total_amount_paid",
			"subtotal_amount",
			"data",
			"updated_at",
		}),
	}).Create(row).Error
}

func (r *registrationImportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RegistrationImport, error) {
	var row models.RegistrationImport
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *registrationImportRepository) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.RegistrationImport, error) {
	var row models.RegistrationImport
	err := r.db.WithContext(ctx).Where("registration_id = ?", registrationID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}


func (r *registrationImportRepository) FindBySquarePaymentID(ctx context.Context, squarePaymentID string) ([]models.RegistrationImport, error) {
	var rows []models.RegistrationImport
	err := r.db.WithContext(ctx).
		Where("square_payment_id = ?", squarePaymentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *registrationImportRepository) FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.RegistrationImport, error) {
	var rows []models.RegistrationImport
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", paymentIntentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *registrationImportRepository) ListUnprocessedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.RegistrationImport, error) {
	var rows []models.RegistrationImport
	query := r.db.WithContext(ctx).
		Where("processed = ? AND created_at < ?", false, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *registrationImportRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status enums.ProcessedStatus, processingError *string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.RegistrationImport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":        true,
			"processed_status": status,
			"processed_at":     now,
			"processing_error": processingError,
		}).Error
}
