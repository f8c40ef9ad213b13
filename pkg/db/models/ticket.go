package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// Ticket is a single unit ticket extracted from a registration's selection
// data. Quantity is always 1: multi-quantity selections are expanded into
// individual rows during extraction.
type Ticket struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RegistrationID uuid.UUID `gorm:"column:registration_id;type:uuid;not null;index"`

	EventTicketID *string `gorm:"column:event_ticket_id;index"`
	Name          string  `gorm:"column:name;not null"`

	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity int             `gorm:"column:quantity;not null;default:1"`

	OwnerType enums.TicketOwnerType `gorm:"column:owner_type;type:ticket_owner_type;not null"`
	OwnerID   string                `gorm:"column:owner_id;not null"`

	Status enums.TicketStatus `gorm:"column:status;type:ticket_status;not null;default:'sold'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
