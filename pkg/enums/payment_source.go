package enums

import "fmt"

// PaymentSource identifies the provider a staged payment came from.
type PaymentSource string

const (
	PaymentSourceSquare PaymentSource = "square"
	PaymentSourceStripe PaymentSource = "stripe"
)

var validPaymentSources = []PaymentSource{
	PaymentSourceSquare,
	PaymentSourceStripe,
}

// String implements fmt.Stringer.
func (s PaymentSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentSource.
func (s PaymentSource) IsValid() bool {
	for _, candidate := range validPaymentSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentSource converts raw input into a PaymentSource.
func ParsePaymentSource(value string) (PaymentSource, error) {
	for _, candidate := range validPaymentSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment source %q", value)
}
