package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// Payment is a reconciled production payment. A row only exists here once
// a staged import has been matched to a registration and promoted.
type Payment struct {
	ID     uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Source enums.PaymentSource `gorm:"column:source;type:payment_source;not null"`

	SourcePaymentID string  `gorm:"column:source_payment_id;not null;uniqueIndex:idx_payments_source_payment"`
	PaymentIntentID *string `gorm:"column:payment_intent_id;index"`

	Status enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`

	GrossAmount decimal.Decimal `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	FeeAmount   decimal.Decimal `gorm:"column:fee_amount;type:numeric(12,2);not null"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Currency    string          `gorm:"column:currency;not null;default:'AUD'"`

	CustomerEmail *string   `gorm:"column:customer_email"`
	CustomerName  *string   `gorm:"column:customer_name"`
	PaymentDate   time.Time `gorm:"column:payment_date;not null;index"`

	RegistrationID *uuid.UUID        `gorm:"column:registration_id;type:uuid;index"`
	MatchMethod    enums.MatchMethod `gorm:"column:match_method;type:match_method;not null;default:'none'"`

	InvoiceCreated bool    `gorm:"column:invoice_created;not null;default:false"`
	InvoiceNumber  *string `gorm:"column:invoice_number"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
