package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// OutboxEvent is one row in the transactional outbox. The row commits in
// the same transaction as the state change it announces; the publisher
// drains unpublished rows into Pub/Sub afterward. PublishedAt, AttemptCount,
// and LastError track that delivery, and rows that exhaust their attempts
// stay in place until the retention job removes them.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:outbox_event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:outbox_aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}
