package enums

import "fmt"

// MatchMethod records which strategy linked a payment to a registration.
type MatchMethod string

const (
	MatchMethodPaymentID       MatchMethod = "payment_id"
	MatchMethodPaymentIntentID MatchMethod = "payment_intent_id"
	MatchMethodCrossReference  MatchMethod = "cross_reference"
	MatchMethodNone            MatchMethod = "none"
)

var validMatchMethods = []MatchMethod{
	MatchMethodPaymentID,
	MatchMethodPaymentIntentID,
	MatchMethodCrossReference,
	MatchMethodNone,
}

// String implements fmt.Stringer.
func (m MatchMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MatchMethod.
func (m MatchMethod) IsValid() bool {
	for _, candidate := range validMatchMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMatchMethod converts raw input into a MatchMethod.
func ParseMatchMethod(value string) (MatchMethod, error) {
	for _, candidate := range validMatchMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid match method %q", value)
}
