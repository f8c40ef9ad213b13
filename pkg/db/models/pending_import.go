package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingImport queues a registration whose payment has not settled yet.
// Each sweep increments CheckCount; once the ceiling is hit the record is
// moved to failed_registrations instead of being retried forever.
type PendingImport struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	RegistrationImportID uuid.UUID `gorm:"column:registration_import_id;type:uuid;not null;uniqueIndex"`
	ConfirmationNumber   string    `gorm:"column:confirmation_number;not null"`
	Reason               string    `gorm:"column:reason;not null"`

	CheckCount    int        `gorm:"column:check_count;not null;default:0"`
	LastCheckedAt *time.Time `gorm:"column:last_checked_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
