package enums

import "fmt"

// OutboxEventType names the domain events published from the outbox.
type OutboxEventType string

const (
	OutboxEventPaymentImported      OutboxEventType = "payment.imported"
	OutboxEventInvoiceIssued        OutboxEventType = "invoice.issued"
	OutboxEventRegistrationOrphaned OutboxEventType = "registration.orphaned"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventPaymentImported,
	OutboxEventInvoiceIssued,
	OutboxEventRegistrationOrphaned,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate a domain event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregatePayment      OutboxAggregateType = "payment"
	OutboxAggregateInvoice      OutboxAggregateType = "invoice"
	OutboxAggregateRegistration OutboxAggregateType = "registration"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	OutboxAggregatePayment,
	OutboxAggregateInvoice,
	OutboxAggregateRegistration,
}

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}
