package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// PaymentImport is a staged gateway payment awaiting reconciliation. Rows
// land here verbatim from Square/Stripe and carry their processing state
// through the pipeline; nothing is deleted on failure.
type PaymentImport struct {
	ID       uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ImportID string              `gorm:"column:import_id;not null"`
	Source   enums.PaymentSource `gorm:"column:source;type:payment_source;not null"`

	// SourcePaymentID is the gateway's own identifier: Square payment id
	// or Stripe charge id. Unique per source.
	SourcePaymentID string  `gorm:"column:source_payment_id;not null;uniqueIndex:idx_payment_imports_source_payment"`
	PaymentIntentID *string `gorm:"column:payment_intent_id"`

	Status    enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	RawStatus string              `gorm:"column:raw_status;not null"`

	GrossAmount decimal.Decimal `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	FeeAmount   decimal.Decimal `gorm:"column:fee_amount;type:numeric(12,2);not null"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Currency    string          `gorm:"column:currency;not null;default:'AUD'"`

	CustomerEmail *string   `gorm:"column:customer_email"`
	CustomerName  *string   `gorm:"column:customer_name"`
	PaymentDate   time.Time `gorm:"column:payment_date;not null"`

	Raw dbtypes.JSONMap `gorm:"column:raw;type:jsonb;not null"`

	Processed             bool                   `gorm:"column:processed;not null;default:false"`
	ProcessedStatus       *enums.ProcessedStatus `gorm:"column:processed_status;type:processed_status"`
	ProcessedAt           *time.Time             `gorm:"column:processed_at"`
	ProcessingError       *string                `gorm:"column:processing_error"`
	MatchedRegistrationID *uuid.UUID             `gorm:"column:matched_registration_id;type:uuid"`
	MatchMethod           *enums.MatchMethod     `gorm:"column:match_method;type:match_method"`
	MatchConfidence       *int                   `gorm:"column:match_confidence"`
	MatchedAt             *time.Time             `gorm:"column:matched_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
