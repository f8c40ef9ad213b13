package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventTicket is reference data describing a sellable ticket type for an
// event. Extraction consults it to resolve names and prices for ticket
// selections that only carry an id.
type EventTicket struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	EventTicketID string  `gorm:"column:event_ticket_id;not null;uniqueIndex"`
	EventID       string  `gorm:"column:event_id;not null;index"`
	Name          string  `gorm:"column:name;not null"`
	Description   *string `gorm:"column:description"`

	Price decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
