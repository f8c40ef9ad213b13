package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// RegistrationImport is a staged registration document. The gateway
// reference columns are canonicalized once at decode time; the original
// document with all its legacy field spellings is preserved in Data.
type RegistrationImport struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ImportID string    `gorm:"column:import_id;not null"`

	RegistrationID     uuid.UUID              `gorm:"column:registration_id;type:uuid;not null;uniqueIndex"`
	ConfirmationNumber string                 `gorm:"column:confirmation_number;not null;index"`
	RegistrationType   enums.RegistrationType `gorm:"column:registration_type;type:registration_type;not null"`

	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id;index"`
	SquarePaymentID       *string `gorm:"column:square_payment_id;index"`

	PrimaryAttendeeName *string `gorm:"column:primary_attendee_name"`
	PrimaryEmail        *string `gorm:"column:primary_email"`

	TotalAmountPaid decimal.Decimal `gorm:"column:total_amount_paid;type:numeric(12,2);not null"`
	SubtotalAmount  decimal.Decimal `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`

	Data dbtypes.JSONMap `gorm:"column:data;type:jsonb;not null"`

	Processed       bool                   `gorm:"column:processed;not null;default:false"`
	ProcessedStatus *enums.ProcessedStatus `gorm:"column:processed_status;type:processed_status"`
	ProcessedAt     *time.Time             `gorm:"column:processed_at"`
	ProcessingError *string                `gorm:"column:processing_error"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
