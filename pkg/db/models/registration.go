package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// Registration is a reconciled production registration.
type Registration struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	RegistrationID     uuid.UUID              `gorm:"column:registration_id;type:uuid;not null;uniqueIndex"`
	ConfirmationNumber string                 `gorm:"column:confirmation_number;not null;uniqueIndex"`
	RegistrationType   enums.RegistrationType `gorm:"column:registration_type;type:registration_type;not null"`

	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id;index"`
	SquarePaymentID       *string `gorm:"column:square_payment_id;index"`

	PrimaryAttendeeName *string `gorm:"column:primary_attendee_name"`
	PrimaryEmail        *string `gorm:"column:primary_email"`
	LodgeID             *string `gorm:"column:lodge_id"`
	OrganisationID      *string `gorm:"column:organisation_id"`

	TotalAmountPaid decimal.Decimal `gorm:"column:total_amount_paid;type:numeric(12,2);not null"`
	SubtotalAmount  decimal.Decimal `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`

	// PaymentVerified flips when a reconciled payment is linked; a
	// registration promoted from staging never carries it unset.
	PaymentID             *uuid.UUID `gorm:"column:payment_id;type:uuid;index"`
	PaymentVerified       bool       `gorm:"column:payment_verified;not null;default:false"`
	CustomerInvoiceNumber *string    `gorm:"column:customer_invoice_number"`
	SupplierInvoiceNumber *string    `gorm:"column:supplier_invoice_number"`

	// Data holds the full registration document, attendees and ticket
	// selections included.
	Data dbtypes.JSONMap `gorm:"column:data;type:jsonb;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
