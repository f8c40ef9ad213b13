package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
)

// FailedRegistration is the terminal parking lot for registrations that
// exhausted their pending retries. The full staged document rides along so
// operators can requeue after fixing the underlying data.
type FailedRegistration struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	RegistrationImportID uuid.UUID `gorm:"column:registration_import_id;type:uuid;not null;index"`
	ConfirmationNumber   string    `gorm:"column:confirmation_number;not null;index"`
	Reason               string    `gorm:"column:reason;not null"`
	CheckCount           int       `gorm:"column:check_count;not null"`

	Data dbtypes.JSONMap `gorm:"column:data;type:jsonb;not null"`

	FailedAt  time.Time `gorm:"column:failed_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
