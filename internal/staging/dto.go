package staging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// Field spellings seen across legacy registration exports. Resolution
// happens once at decode time; downstream code only ever sees the
// canonical fields.
var (
	stripeIntentKeys  = []string{"stripePaymentIntentId", "stripe_payment_intent_id", "paymentIntentId", "payment_intent_id"}
	squarePaymentKeys = []string{"squarePaymentId", "square_payment_id"}
	confirmationKeys  = []string{"confirmationNumber", "confirmation_number"}
	registrationKeys  = []string{"registrationId", "registration_id"}
	typeKeys          = []string{"registrationType", "registration_type", "type"}
	totalPaidKeys     = []string{"totalAmountPaid", "total_amount_paid", "totalPricePaid", "total_price_paid"}
	subtotalKeys      = []string{"subtotal", "subtotal_amount", "subtotalAmount"}
	primaryNameKeys   = []string{"primaryAttendee", "primary_attendee", "primaryAttendeeName"}
	primaryEmailKeys  = []string{"primaryEmail", "primary_email", "email"}
)

// RegistrationDocument is a registration export document with its legacy
// field variants already resolved. Raw preserves the full original.
type RegistrationDocument struct {
	RegistrationID        uuid.UUID
	ConfirmationNumber    string
	RegistrationType      enums.RegistrationType
	StripePaymentIntentID string
	SquarePaymentID       string
	PrimaryAttendeeName   string
	PrimaryEmail          string
	TotalAmountPaid       decimal.Decimal
	SubtotalAmount        decimal.Decimal
	Raw                   dbtypes.JSONMap
}

// UnmarshalJSON resolves each canonical field by walking the known key
// variants at the top level first, then inside the nested
// registrationData object.
func (d *RegistrationDocument) UnmarshalJSON(data []byte) error {
	raw := dbtypes.JSONMap{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode registration document: %w", err)
	}
	d.Raw = raw

	nested := nestedData(raw)

	regID, ok := lookupString(raw, nested, registrationKeys)
	if !ok {
		return fmt.Errorf("registration document missing registrationId")
	}
	parsed, err := uuid.Parse(strings.TrimSpace(regID))
	if err != nil {
		return fmt.Errorf("invalid registrationId %q: %w", regID, err)
	}
	d.RegistrationID = parsed

	confirmation, ok := lookupString(raw, nested, confirmationKeys)
	if !ok {
		return fmt.Errorf("registration document missing confirmationNumber")
	}
	d.ConfirmationNumber = strings.TrimSpace(confirmation)

	rawType, _ := lookupString(raw, nested, typeKeys)
	regType, err := enums.ParseRegistrationType(rawType)
	if err != nil {
		return fmt.Errorf("registration %s: %w", d.ConfirmationNumber, err)
	}
	d.RegistrationType = regType

	d.StripePaymentIntentID, _ = lookupString(raw, nested, stripeIntentKeys)
	d.SquarePaymentID, _ = lookupString(raw, nested, squarePaymentKeys)
	d.PrimaryAttendeeName, _ = lookupString(raw, nested, primaryNameKeys)
	d.PrimaryEmail, _ = lookupString(raw, nested, primaryEmailKeys)

	d.TotalAmountPaid = lookupAmount(raw, nested, totalPaidKeys)
	d.SubtotalAmount = lookupAmount(raw, nested, subtotalKeys)

	return nil
}

// HasPaymentReference reports whether the document carries any gateway
// reference a payment could match on.
func (d *RegistrationDocument) HasPaymentReference() bool {
	return d.StripePaymentIntentID != "" || d.SquarePaymentID != ""
}

func nestedData(raw dbtypes.JSONMap) dbtypes.JSONMap {
	for _, key := range []string{"registrationData", "registration_data"} {
		if inner, ok := raw[key].(map[string]any); ok {
			return dbtypes.JSONMap(inner)
		}
	}
	return nil
}

func lookupString(top, nested dbtypes.JSONMap, keys []string) (string, bool) {
	if s, ok := top.FirstString(keys...); ok {
		return s, true
	}
	if nested != nil {
		if s, ok := nested.FirstString(keys...); ok {
			return s, true
		}
	}
	return "", false
}

func lookupAmount(top, nested dbtypes.JSONMap, keys []string) decimal.Decimal {
	for _, source := range []dbtypes.JSONMap{top, nested} {
		if source == nil {
			continue
		}
		for _, key := range keys {
			if value, ok := source[key]; ok {
				if amount, ok := toDecimal(value); ok {
					return amount
				}
			}
		}
	}
	return decimal.Zero
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			if amount, err := decimal.NewFromString(trimmed); err == nil {
				return amount, true
			}
		}
	case map[string]any:
		// Mongo decimal exports arrive as {"$numberDecimal": "123.45"}
		if inner, ok := v["$numberDecimal"].(string); ok {
			if amount, err := decimal.NewFromString(inner); err == nil {
				return amount, true
			}
		}
	}
	return decimal.Zero, false
}
