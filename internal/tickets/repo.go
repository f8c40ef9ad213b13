package tickets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lodgetix/reconcile/pkg/db/models"
)

// EventTicketRepository exposes the ticket reference data.
type EventTicketRepository interface {
	WithTx(tx *gorm.DB) EventTicketRepository
	GetByEventTicketID(ctx context.Context, eventTicketID string) (*models.EventTicket, error)
	Upsert(ctx context.Context, row *models.EventTicket) error
}

type eventTicketRepository struct {
	db *gorm.DB
}

// NewEventTicketRepository returns a repository bound to the provided database.
func NewEventTicketRepository(db *gorm.DB) EventTicketRepository {
	return &eventTicketRepository{db: db}
}

func (r *eventTicketRepository) WithTx(tx *gorm.DB) EventTicketRepository {
	if tx == nil {
		return r
	}
	return &eventTicketRepository{db: tx}
}

func (r *eventTicketRepository) GetByEventTicketID(ctx context.Context, eventTicketID string) (*models.EventTicket, error) {
	var row models.EventTicket
	err := r.db.WithContext(ctx).Where("event_ticket_id = ?", eventTicketID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *eventTicketRepository) Upsert(ctx context.Context, row *models.EventTicket) error {
	existing, err := r.GetByEventTicketID(ctx, row.EventTicketID)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(row).Error
	}
	row.ID = existing.ID
	return r.db.WithContext(ctx).Save(row).Error
}

// TicketRepository manages persistence for extracted unit tickets.
type TicketRepository interface {
	WithTx(tx *gorm.DB) TicketRepository
	CreateBatch(ctx context.Context, rows []models.Ticket) error
	ListByRegistrationID(ctx context.Context, registrationID uuid.UUID) ([]models.Ticket, error)
	DeleteByRegistrationID(ctx context.Context, registrationID uuid.UUID) error
}

type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository returns a repository bound to the provided database.
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) WithTx(tx *gorm.DB) TicketRepository {
	if tx == nil {
		return r
	}
	return &ticketRepository{db: tx}
}

func (r *ticketRepository) CreateBatch(ctx context.Context, rows []models.Ticket) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *ticketRepository) ListByRegistrationID(ctx context.Context, registrationID uuid.UUID) ([]models.Ticket, error) {
	var rows []models.Ticket
	if err := r.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ticketRepository) DeleteByRegistrationID(ctx context.Context, registrationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Delete(&models.Ticket{}).Error
}
