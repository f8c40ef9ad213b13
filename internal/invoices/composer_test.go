package invoices

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

func testInvoiceConfig() config.InvoiceConfig {
	return config.InvoiceConfig{
		CustomerPrefix:   "LTIV",
		SupplierPrefix:   "LTSP",
		SupplierName:     "LodgeTix",
		PlatformName:     "United Grand Lodge of NSW & ACT",
		DefaultCurrency:  "AUD",
		DueDays:          30,
		StripeFeeRate:    "0.033",
		SquareFeeRate:    "0.028",
		CounterName:      "customer_invoice",
		LedgerCounter:    "transaction_sequence",
		MaxErrorMessages: 10,
	}
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	composer, err := NewComposer(testInvoiceConfig())
	require.NoError(t, err)
	return composer
}

func composeFixture(gross float64, ticketRows []models.Ticket) ComposeInput {
	regID := uuid.New()
	name := "John Doe"
	payment := &models.Payment{
		ID:              uuid.New(),
		Source:          enums.PaymentSourceStripe,
		SourcePaymentID: "ch_fixture",
		GrossAmount:     decimal.NewFromFloat(gross),
		Currency:        "AUD",
		RegistrationID:  &regID,
	}
	reg := &models.Registration{
		ID:                  regID,
		RegistrationID:      uuid.New(),
		ConfirmationNumber:  "IND-100001",
		RegistrationType:    enums.RegistrationTypeIndividual,
		PrimaryAttendeeName: &name,
		Data:                dbtypes.JSONMap{},
	}
	return ComposeInput{Payment: payment, Registration: reg, Tickets: ticketRows}
}

func unitTicket(ownerID, name string, price float64) models.Ticket {
	return models.Ticket{
		Name:      name,
		Price:     decimal.NewFromFloat(price),
		Quantity:  1,
		OwnerType: enums.TicketOwnerTypeAttendee,
		OwnerID:   ownerID,
		Status:    enums.TicketStatusSold,
	}
}

func TestComposeCustomerDerivesFeesFromRemainder(t *testing.T) {
	composer := newTestComposer(t)
	input := composeFixture(21.47, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})

	customer, supplier, err := composer.Compose(input)
	require.NoError(t, err)

	assert.True(t, customer.Subtotal.Equal(decimal.NewFromInt(20)), "subtotal %s", customer.Subtotal)
	assert.True(t, customer.ProcessingFees.Equal(decimal.NewFromFloat(1.47)), "fees %s", customer.ProcessingFees)
	assert.True(t, customer.Total.Equal(decimal.NewFromFloat(21.47)), "total %s", customer.Total)

	require.Len(t, customer.Lines, 2)
	assert.False(t, customer.Lines[0].Priced(), "header line carries no price")
	assert.Equal(t, "Registration IND-100001", customer.Lines[0].Description)
	require.Len(t, customer.Lines[1].SubItems, 1)
	assert.True(t, customer.Lines[1].SubItems[0].Priced())
	assert.False(t, customer.Lines[1].Priced(), "attendee line carries no price")

	require.NotNil(t, supplier)
}

func TestComposeSupplierRechargesFeesAndSoftwareFee(t *testing.T) {
	composer := newTestComposer(t)
	input := composeFixture(21.47, []models.Ticket{unitTicket("A1", "Gala Dinner", 20)})

	_, supplier, err := composer.Compose(input)
	require.NoError(t, err)

	require.Len(t, supplier.Lines, 2)
	assert.Equal(t, "Processing Fees Reimbursement", supplier.Lines[0].Description)
	assert.True(t, supplier.Lines[0].Amount.Equal(decimal.NewFromFloat(1.47)))

	// 3.3% of 21.47, rounded to the cent.
	assert.Equal(t, "Software Utilization Fee", supplier.Lines[1].Description)
	assert.True(t, supplier.Lines[1].Amount.Equal(decimal.NewFromFloat(0.71)), "got %s", supplier.Lines[1].Amount)

	assert.True(t, supplier.Total.Equal(decimal.NewFromFloat(2.18)))
	assert.True(t, supplier.ProcessingFees.IsZero())

	// Identities swap: the platform is billed by the software supplier.
	assert.Equal(t, "United Grand Lodge of NSW & ACT", supplier.BillToName)
	assert.Equal(t, "LodgeTix", supplier.SupplierName)
}

func TestComposeUsesSquareRateForSquarePayments(t *testing.T) {
	composer := newTestComposer(t)
	input := composeFixture(100, []models.Ticket{unitTicket("A1", "Ceremony", 95)})
	input.Payment.Source = enums.PaymentSourceSquare

	_, supplier, err := composer.Compose(input)
	require.NoError(t, err)
	assert.True(t, supplier.Lines[1].Amount.Equal(decimal.NewFromFloat(2.80)), "got %s", supplier.Lines[1].Amount)
}

func TestComposeGroupsTicketsByAttendeeWithNames(t *testing.T) {
	composer := newTestComposer(t)
	input := composeFixture(150, []models.Ticket{
		unitTicket("A1", "Gala Dinner", 50),
		unitTicket("A2", "Gala Dinner", 50),
		unitTicket("A1", "Ceremony", 50),
	})
	input.Registration.Data = dbtypes.JSONMap{
		"attendees": []any{
			map[string]any{"attendeeId": "A1", "firstName": "John", "lastName": "Doe"},
			map[string]any{"attendeeId": "A2", "firstName": "Jane", "lastName": "Roe"},
		},
	}

	customer, _, err := composer.Compose(input)
	require.NoError(t, err)

	require.Len(t, customer.Lines, 3)
	assert.Equal(t, "John Doe", customer.Lines[1].Description)
	assert.Len(t, customer.Lines[1].SubItems, 2)
	assert.Equal(t, "Jane Roe", customer.Lines[2].Description)
	assert.Len(t, customer.Lines[2].SubItems, 1)
	assert.True(t, customer.Subtotal.Equal(decimal.NewFromInt(150)))
	assert.True(t, customer.ProcessingFees.IsZero())
}
