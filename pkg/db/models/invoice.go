package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// Invoice is an issued invoice, customer or supplier. The two invoices for
// a payment share a sequence number and differ only in prefix, so the
// supplier row links back to its customer counterpart.
type Invoice struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	InvoiceNumber    string            `gorm:"column:invoice_number;not null;uniqueIndex"`
	Type             enums.InvoiceType `gorm:"column:type;type:invoice_type;not null"`
	RelatedInvoiceID *uuid.UUID        `gorm:"column:related_invoice_id;type:uuid"`

	PaymentID      uuid.UUID `gorm:"column:payment_id;type:uuid;not null;index"`
	RegistrationID uuid.UUID `gorm:"column:registration_id;type:uuid;not null;index"`

	BillToName   string  `gorm:"column:bill_to_name;not null"`
	BillToEmail  *string `gorm:"column:bill_to_email"`
	SupplierName string  `gorm:"column:supplier_name;not null"`
	SupplierABN  *string `gorm:"column:supplier_abn"`

	IssuedDate time.Time `gorm:"column:issued_date;not null"`
	DueDate    time.Time `gorm:"column:due_date;not null"`

	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ProcessingFees decimal.Decimal `gorm:"column:processing_fees;type:numeric(12,2);not null"`
	Total          decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Currency       string          `gorm:"column:currency;not null;default:'AUD'"`

	// LineItems is the composed line structure: header line, per-attendee
	// lines and priced ticket sub-items.
	LineItems json.RawMessage `gorm:"column:line_items;type:jsonb;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
