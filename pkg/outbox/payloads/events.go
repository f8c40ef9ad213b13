package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// PaymentImportedEvent signals that a gateway payment was staged.
type PaymentImportedEvent struct {
	PaymentImportID uuid.UUID           `json:"payment_import_id"`
	Source          enums.PaymentSource `json:"source"`
	SourcePaymentID string              `json:"source_payment_id"`
	Status          enums.PaymentStatus `json:"status"`
	GrossAmount     string              `json:"gross_amount"`
	Currency        string              `json:"currency"`
	PaymentDate     time.Time           `json:"payment_date"`
}

// InvoiceIssuedEvent is emitted once per reconciled payment, after the
// customer and supplier invoices commit together.
type InvoiceIssuedEvent struct {
	PaymentID             uuid.UUID `json:"payment_id"`
	RegistrationID        uuid.UUID `json:"registration_id"`
	ConfirmationNumber    string    `json:"confirmation_number"`
	CustomerInvoiceNumber string    `json:"customer_invoice_number"`
	SupplierInvoiceNumber string    `json:"supplier_invoice_number"`
	Total                 string    `json:"total"`
	Currency              string    `json:"currency"`
	IssuedAt              time.Time `json:"issued_at"`
}

// RegistrationOrphanedEvent reports a registration with no payment after
// the lookback window.
type RegistrationOrphanedEvent struct {
	RegistrationID     uuid.UUID `json:"registration_id"`
	ConfirmationNumber string    `json:"confirmation_number"`
	Reason             string    `json:"reason"`
	FlaggedAt          time.Time `json:"flagged_at"`
}
