package staging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stripe/stripe-go/v84"

	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// normalizeSquarePayment maps a Square payment onto a staged row. Amounts
// arrive in cents.
func normalizeSquarePayment(payment *sq.Payment, importID string) (*models.PaymentImport, error) {
	if payment == nil {
		return nil, fmt.Errorf("nil square payment")
	}
	id := strings.TrimSpace(deref(payment.GetID()))
	if id == "" {
		return nil, fmt.Errorf("square payment missing id")
	}

	rawStatus := deref(payment.GetStatus())
	gross := moneyToDecimal(payment.GetAmountMoney())
	fees := decimal.Zero
	for _, fee := range payment.GetProcessingFee() {
		if fee == nil {
			continue
		}
		fees = fees.Add(moneyToDecimal(fee.GetAmountMoney()))
	}

	paymentDate := time.Now()
	if createdAt := deref(payment.GetCreatedAt()); createdAt != "" {
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			paymentDate = parsed
		}
	}

	currency := "AUD"
	if money := payment.GetAmountMoney(); money != nil && money.GetCurrency() != nil {
		currency = string(*money.GetCurrency())
	}

	row := &models.PaymentImport{
		ImportID:        importID,
		Source:          enums.PaymentSourceSquare,
		SourcePaymentID: id,
		Status:          enums.MapProviderStatus(rawStatus),
		RawStatus:       rawStatus,
		GrossAmount:     gross,
		FeeAmount:       fees,
		NetAmount:       gross.Sub(fees),
		Currency:        currency,
		PaymentDate:     paymentDate,
		Raw:             toRawMap(payment),
	}
	if email := strings.TrimSpace(deref(payment.GetBuyerEmailAddress())); email != "" {
		row.CustomerEmail = &email
	}
	return row, nil
}

// normalizeStripeCharge maps a Stripe charge onto a staged row. Fee comes
// from the expanded balance transaction when present.
func normalizeStripeCharge(ch *stripe.Charge, importID string) (*models.PaymentImport, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil stripe charge")
	}
	if strings.TrimSpace(ch.ID) == "" {
		return nil, fmt.Errorf("stripe charge missing id")
	}

	gross := centsToDecimal(ch.Amount)
	fees := decimal.Zero
	if ch.BalanceTransaction != nil {
		fees = centsToDecimal(ch.BalanceTransaction.Fee)
	}

	currency := strings.ToUpper(string(ch.Currency))
	if currency == "" {
		currency = "AUD"
	}

	row := &models.PaymentImport{
		ImportID:        importID,
		Source:          enums.PaymentSourceStripe,
		SourcePaymentID: ch.ID,
		Status:          enums.MapProviderStatus(string(ch.Status)),
		RawStatus:       string(ch.Status),
		GrossAmount:     gross,
		FeeAmount:       fees,
		NetAmount:       gross.Sub(fees),
		Currency:        currency,
		PaymentDate:     time.Unix(ch.Created, 0).UTC(),
		Raw:             toRawMap(ch),
	}
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		intent := ch.PaymentIntent.ID
		row.PaymentIntentID = &intent
	}
	if ch.BillingDetails != nil {
		if email := strings.TrimSpace(ch.BillingDetails.Email); email != "" {
			row.CustomerEmail = &email
		}
		if name := strings.TrimSpace(ch.BillingDetails.Name); name != "" {
			row.CustomerName = &name
		}
	}
	if row.CustomerEmail == nil && strings.TrimSpace(ch.ReceiptEmail) != "" {
		email := strings.TrimSpace(ch.ReceiptEmail)
		row.CustomerEmail = &email
	}
	return row, nil
}

func moneyToDecimal(money *sq.Money) decimal.Decimal {
	if money == nil || money.GetAmount() == nil {
		return decimal.Zero
	}
	return centsToDecimal(*money.GetAmount())
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

func toRawMap(value any) dbtypes.JSONMap {
	raw, err := json.Marshal(value)
	if err != nil {
		return dbtypes.JSONMap{}
	}
	out := dbtypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return dbtypes.JSONMap{}
	}
	return out
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
