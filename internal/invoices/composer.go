package invoices

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// LineItem is one invoice line. Header and attendee lines carry no price;
// money lives only on the priced leaves.
type LineItem struct {
	Description string           `json:"description"`
	Quantity    int              `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	SubItems    []LineItem       `json:"sub_items,omitempty"`
}

// Priced reports whether the line itself carries money.
func (l LineItem) Priced() bool {
	return l.Amount != nil
}

// Draft is a composed invoice before numbering and persistence.
type Draft struct {
	Type           enums.InvoiceType
	BillToName     string
	BillToEmail    *string
	SupplierName   string
	SupplierABN    *string
	Subtotal       decimal.Decimal
	ProcessingFees decimal.Decimal
	Total          decimal.Decimal
	Currency       string
	Lines          []LineItem
}

// ComposeInput is the reconciled tuple an invoice pair is built from.
type ComposeInput struct {
	Payment      *models.Payment
	Registration *models.Registration
	Tickets      []models.Ticket
}

// Composer builds the paired customer and supplier invoices for a
// reconciled payment.
type Composer struct {
	cfg        config.InvoiceConfig
	stripeRate decimal.Decimal
	squareRate decimal.Decimal
}

// NewComposer parses the software fee rates and returns a composer.
func NewComposer(cfg config.InvoiceConfig) (*Composer, error) {
	stripeRate, err := decimal.NewFromString(cfg.StripeFeeRate)
	if err != nil {
		return nil, fmt.Errorf("parsing stripe fee rate %q: %w", cfg.StripeFeeRate, err)
	}
	squareRate, err := decimal.NewFromString(cfg.SquareFeeRate)
	if err != nil {
		return nil, fmt.Errorf("parsing square fee rate %q: %w", cfg.SquareFeeRate, err)
	}
	return &Composer{cfg: cfg, stripeRate: stripeRate, squareRate: squareRate}, nil
}

// Compose builds both invoices. The customer invoice itemizes tickets
// under attendee lines; subtotal is the sum of the priced leaves and
// whatever the payment charged beyond it is attributed to processing
// fees. The supplier invoice recharges those fees plus the software
// utilization fee back to the platform.
func (c *Composer) Compose(input ComposeInput) (*Draft, *Draft, error) {
	if input.Payment == nil || input.Registration == nil {
		return nil, nil, errors.New("payment and registration are required")
	}

	customer, err := c.composeCustomer(input)
	if err != nil {
		return nil, nil, err
	}
	supplier := c.composeSupplier(input.Payment, customer)
	return customer, supplier, nil
}

func (c *Composer) composeCustomer(input ComposeInput) (*Draft, error) {
	payment := input.Payment
	reg := input.Registration

	lines := []LineItem{{
		Description: fmt.Sprintf("Registration %s", reg.ConfirmationNumber),
	}}

	names := attendeeNames(reg.Data)
	subtotal := decimal.Zero
	for _, group := range groupTickets(input.Tickets) {
		parent := LineItem{Description: ownerDescription(group.ownerType, group.ownerID, names)}
		for _, ticket := range group.tickets {
			amount := ticket.Price.Mul(decimal.NewFromInt(int64(ticket.Quantity))).Round(2)
			price := ticket.Price
			parent.SubItems = append(parent.SubItems, LineItem{
				Description: ticket.Name,
				Quantity:    ticket.Quantity,
				UnitPrice:   &price,
				Amount:      &amount,
			})
			subtotal = subtotal.Add(amount)
		}
		lines = append(lines, parent)
	}

	total := payment.GrossAmount
	fees := total.Sub(subtotal)

	billToName := reg.PrimaryAttendeeName
	if payment.CustomerName != nil && *payment.CustomerName != "" {
		billToName = payment.CustomerName
	}
	if billToName == nil || *billToName == "" {
		return nil, fmt.Errorf("registration %s has no billable name", reg.ConfirmationNumber)
	}
	billToEmail := reg.PrimaryEmail
	if payment.CustomerEmail != nil && *payment.CustomerEmail != "" {
		billToEmail = payment.CustomerEmail
	}

	draft := &Draft{
		Type:           enums.InvoiceTypeCustomer,
		BillToName:     *billToName,
		BillToEmail:    billToEmail,
		SupplierName:   c.cfg.PlatformName,
		Subtotal:       subtotal.Round(2),
		ProcessingFees: fees.Round(2),
		Total:          total.Round(2),
		Currency:       payment.Currency,
		Lines:          lines,
	}
	if c.cfg.PlatformABN != "" {
		abn := c.cfg.PlatformABN
		draft.SupplierABN = &abn
	}
	return draft, nil
}

// composeSupplier builds the software-fee invoice: the platform becomes
// the customer of its own payment processor costs.
func (c *Composer) composeSupplier(payment *models.Payment, customer *Draft) *Draft {
	reimbursement := customer.ProcessingFees
	utilization := customer.Total.Mul(c.feeRate(payment.Source)).Round(2)

	lines := []LineItem{
		{
			Description: "Processing Fees Reimbursement",
			Quantity:    1,
			UnitPrice:   &reimbursement,
			Amount:      &reimbursement,
		},
		{
			Description: "Software Utilization Fee",
			Quantity:    1,
			UnitPrice:   &utilization,
			Amount:      &utilization,
		},
	}

	subtotal := reimbursement.Add(utilization).Round(2)
	draft := &Draft{
		Type:           enums.InvoiceTypeSupplier,
		BillToName:     c.cfg.PlatformName,
		SupplierName:   c.cfg.SupplierName,
		Subtotal:       subtotal,
		ProcessingFees: decimal.Zero,
		Total:          subtotal,
		Currency:       customer.Currency,
		Lines:          lines,
	}
	if c.cfg.SupplierABN != "" {
		abn := c.cfg.SupplierABN
		draft.SupplierABN = &abn
	}
	return draft
}

func (c *Composer) feeRate(source enums.PaymentSource) decimal.Decimal {
	if source == enums.PaymentSourceSquare {
		return c.squareRate
	}
	return c.stripeRate
}

type ticketGroup struct {
	ownerType enums.TicketOwnerType
	ownerID   string
	tickets   []models.Ticket
}

// groupTickets buckets unit tickets by owner, preserving first-seen order.
func groupTickets(rows []models.Ticket) []ticketGroup {
	index := map[string]int{}
	groups := []ticketGroup{}
	for _, row := range rows {
		key := string(row.OwnerType) + ":" + row.OwnerID
		if i, ok := index[key]; ok {
			groups[i].tickets = append(groups[i].tickets, row)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, ticketGroup{ownerType: row.OwnerType, ownerID: row.OwnerID, tickets: []models.Ticket{row}})
	}
	return groups
}

func ownerDescription(ownerType enums.TicketOwnerType, ownerID string, names map[string]string) string {
	if ownerType == enums.TicketOwnerTypeAttendee {
		if name, ok := names[ownerID]; ok {
			return name
		}
		return fmt.Sprintf("Attendee %s", ownerID)
	}
	return fmt.Sprintf("Lodge %s", ownerID)
}

// attendeeNames indexes attendee display names by id out of the raw
// registration document.
func attendeeNames(data dbtypes.JSONMap) map[string]string {
	names := map[string]string{}
	sources := []dbtypes.JSONMap{data}
	if inner, ok := data["registrationData"].(map[string]any); ok {
		sources = append(sources, dbtypes.JSONMap(inner))
	}
	for _, source := range sources {
		raw, ok := source["attendees"].([]any)
		if !ok {
			continue
		}
		for _, entry := range raw {
			attendee, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			am := dbtypes.JSONMap(attendee)
			id, ok := am.FirstString("attendeeId", "attendee_id")
			if !ok {
				continue
			}
			first, _ := am.FirstString("firstName", "first_name")
			last, _ := am.FirstString("lastName", "last_name")
			name := first
			if last != "" {
				if name != "" {
					name += " "
				}
				name += last
			}
			if name != "" {
				names[id] = name
			}
		}
	}
	return names
}
