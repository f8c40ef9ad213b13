package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// Transaction is one flattened ledger row for an invoice line item. IDs
// are integers issued from the transaction sequence counter inside the
// issuance transaction, so the ledger stays gap-tolerant but duplicate-free.
type Transaction struct {
	ID int64 `gorm:"column:id;primaryKey"`

	InvoiceNumber string            `gorm:"column:invoice_number;not null;index"`
	InvoiceType   enums.InvoiceType `gorm:"column:invoice_type;type:invoice_type;not null"`

	PaymentID          uuid.UUID `gorm:"column:payment_id;type:uuid;not null;index"`
	RegistrationID     uuid.UUID `gorm:"column:registration_id;type:uuid;not null"`
	ConfirmationNumber string    `gorm:"column:confirmation_number;not null"`

	Description string          `gorm:"column:description;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`

	CustomerEmail *string `gorm:"column:customer_email"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
