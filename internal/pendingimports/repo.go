package pendingimports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lodgetix/reconcile/pkg/db/models"
)

// Repository manages the pending-import queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, row *models.PendingImport) error
	GetByRegistrationImportID(ctx context.Context, registrationImportID uuid.UUID) (*models.PendingImport, error)
	List(ctx context.Context, limit int) ([]models.PendingImport, error)
	RecordCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
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

// Enqueue is idempotent: re-queueing a registration already waiting does
// not reset its check count.
func (r *repository) Enqueue(ctx context.Context, row *models.PendingImport) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registration_import_id"}},
		DoNothing: true,
	}).Create(row).Error
}

func (r *repository) GetByRegistrationImportID(ctx context.Context, registrationImportID uuid.UUID) (*models.PendingImport, error) {
	var row models.PendingImport
	err := r.db.WithContext(ctx).Where("registration_import_id = ?", registrationImportID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]models.PendingImport, error) {
	var rows []models.PendingImport
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RecordCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PendingImport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"check_count":     gorm.Expr("check_count + 1"),
			"last_checked_at": checkedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PendingImport{}).Error
}

// FailedRegistrationRepository is the terminal store for registrations
// that exhausted their pending retries.
type FailedRegistrationRepository interface {
	WithTx(tx *gorm.DB) FailedRegistrationRepository
	Insert(ctx context.Context, row *models.FailedRegistration) error
	List(ctx context.Context, limit int) ([]models.FailedRegistration, error)
}

type failedRegistrationRepository struct {
	db *gorm.DB
}

// NewFailedRegistrationRepository returns a repository bound to the provided database.
func NewFailedRegistrationRepository(db *gorm.DB) FailedRegistrationRepository {
	return &failedRegistrationRepository{db: db}
}

func (r *failedRegistrationRepository) WithTx(tx *gorm.DB) FailedRegistrationRepository {
	if tx == nil {
		return r
	}
	return &failedRegistrationRepository{db: tx}
}

func (r *failedRegistrationRepository) Insert(ctx context.Context, row *models.FailedRegistration) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *failedRegistrationRepository) List(ctx context.Context, limit int) ([]models.FailedRegistration, error) {
	var rows []models.FailedRegistration
	query := r.db.WithContext(ctx).Order("failed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
