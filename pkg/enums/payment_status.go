package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the normalized settlement state of an imported payment.
type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusUnknown   PaymentStatus = "unknown"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPaid,
	PaymentStatusPending,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
	PaymentStatusUnknown,
}

// providerStatusMap folds the Square and Stripe gateway vocabularies into
// the normalized set. Keys are lower-cased before lookup.
var providerStatusMap = map[string]PaymentStatus{
	"completed":        PaymentStatusPaid,
	"approved":         PaymentStatusPaid,
	"succeeded":        PaymentStatusPaid,
	"paid":             PaymentStatusPaid,
	"pending":          PaymentStatusPending,
	"processing":       PaymentStatusPending,
	"requires_capture": PaymentStatusPending,
	"failed":           PaymentStatusFailed,
	"canceled":         PaymentStatusCancelled,
	"cancelled":        PaymentStatusCancelled,
	"refunded":         PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSettled reports whether the payment has cleared and may be invoiced.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentStatusPaid
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// MapProviderStatus normalizes a gateway status string. Statuses the map
// does not recognise come back as PaymentStatusUnknown rather than an
// error so that an unexpected gateway value never blocks an import.
func MapProviderStatus(raw string) PaymentStatus {
	if mapped, ok := providerStatusMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return PaymentStatusUnknown
}
