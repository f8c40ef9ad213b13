package enums

import "fmt"

// TicketOwnerType distinguishes attendee-owned from organisation-owned tickets.
type TicketOwnerType string

const (
	TicketOwnerTypeAttendee TicketOwnerType = "attendee"
	TicketOwnerTypeLodge    TicketOwnerType = "lodge"
)

var validTicketOwnerTypes = []TicketOwnerType{
	TicketOwnerTypeAttendee,
	TicketOwnerTypeLodge,
}

// String implements fmt.Stringer.
func (t TicketOwnerType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketOwnerType.
func (t TicketOwnerType) IsValid() bool {
	for _, candidate := range validTicketOwnerTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTicketOwnerType converts raw input into a TicketOwnerType.
func ParseTicketOwnerType(value string) (TicketOwnerType, error) {
	for _, candidate := range validTicketOwnerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket owner type %q", value)
}
