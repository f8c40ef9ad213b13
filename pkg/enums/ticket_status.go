package enums

import "fmt"

// TicketStatus tracks the lifecycle of an extracted ticket row.
type TicketStatus string

const (
	TicketStatusSold        TicketStatus = "sold"
	TicketStatusReserved    TicketStatus = "reserved"
	TicketStatusTransferred TicketStatus = "transferred"
	TicketStatusExpired     TicketStatus = "expired"
	TicketStatusCancelled   TicketStatus = "cancelled"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusSold,
	TicketStatusReserved,
	TicketStatusTransferred,
	TicketStatusExpired,
	TicketStatusCancelled,
}

// String implements fmt.Stringer.
func (t TicketStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
