package invoices

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/enums"
)

// centTolerance absorbs rounding drift between itemized amounts and the
// gateway's charged totals.
var centTolerance = decimal.NewFromFloat(0.01)

// Finding is one validation outcome. Errors block the invoice write;
// warnings are recorded and ignored.
type Finding struct {
	Severity enums.Severity `json:"severity"`
	Field    string         `json:"field"`
	Message  string         `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Field, f.Message)
}

// ValidationResult collects the findings for one invoice pair.
type ValidationResult struct {
	Findings []Finding
}

// Ok reports whether the invoice pair may be written.
func (v *ValidationResult) Ok() bool {
	for _, finding := range v.Findings {
		if finding.Severity == enums.SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the blocking findings.
func (v *ValidationResult) Errors() []Finding {
	var out []Finding
	for _, finding := range v.Findings {
		if finding.Severity == enums.SeverityError {
			out = append(out, finding)
		}
	}
	return out
}

// Warnings returns only the non-blocking findings.
func (v *ValidationResult) Warnings() []Finding {
	var out []Finding
	for _, finding := range v.Findings {
		if finding.Severity == enums.SeverityWarning {
			out = append(out, finding)
		}
	}
	return out
}

func (v *ValidationResult) addError(field, message string) {
	v.Findings = append(v.Findings, Finding{Severity: enums.SeverityError, Field: field, Message: message})
}

func (v *ValidationResult) addWarning(field, message string) {
	v.Findings = append(v.Findings, Finding{Severity: enums.SeverityWarning, Field: field, Message: message})
}

// Validate runs the pre-write gate over a composed invoice pair.
func Validate(input ComposeInput, customer, supplier *Draft) *ValidationResult {
	result := &ValidationResult{}

	validateIdentifiers(input, result)
	if customer != nil {
		validateArithmetic("customer", customer, result)
		validateShape(input, customer, result)
	} else {
		result.addError("customer", "customer invoice missing")
	}
	if supplier != nil {
		validateArithmetic("supplier", supplier, result)
	} else {
		result.addError("supplier", "supplier invoice missing")
	}
	return result
}

func validateIdentifiers(input ComposeInput, result *ValidationResult) {
	if input.Payment == nil {
		result.addError("payment", "payment missing")
		return
	}
	if input.Registration == nil {
		result.addError("registration", "registration missing")
		return
	}
	if input.Payment.ID == uuid.Nil {
		result.addError("payment.id", "payment has no id")
	}
	if input.Payment.SourcePaymentID == "" {
		result.addError("payment.source_payment_id", "payment has no gateway identifier")
	}
	if input.Registration.ConfirmationNumber == "" {
		result.addError("registration.confirmation_number", "registration has no confirmation number")
	}
	if input.Payment.RegistrationID == nil || *input.Payment.RegistrationID != input.Registration.ID {
		result.addError("payment.registration_id", "payment is not linked to this registration")
	}
}

func validateArithmetic(prefix string, draft *Draft, result *ValidationResult) {
	itemized := decimal.Zero
	for i, line := range draft.Lines {
		if line.Priced() {
			checkLineAmount(fmt.Sprintf("%s.lines[%d]", prefix, i), line, result)
			itemized = itemized.Add(*line.Amount)
		}
		for j, sub := range line.SubItems {
			if !sub.Priced() {
				result.addError(fmt.Sprintf("%s.lines[%d].sub_items[%d]", prefix, i, j), "sub-item carries no amount")
				continue
			}
			checkLineAmount(fmt.Sprintf("%s.lines[%d].sub_items[%d]", prefix, i, j), sub, result)
			itemized = itemized.Add(*sub.Amount)
		}
	}

	if draft.Subtotal.Sub(itemized).Abs().GreaterThan(centTolerance) {
		result.addError(prefix+".subtotal",
			fmt.Sprintf("subtotal %s does not equal itemized sum %s", draft.Subtotal, itemized))
	}
	expectedTotal := draft.Subtotal.Add(draft.ProcessingFees)
	if draft.Total.Sub(expectedTotal).Abs().GreaterThan(centTolerance) {
		result.addError(prefix+".total",
			fmt.Sprintf("total %s does not equal subtotal plus fees %s", draft.Total, expectedTotal))
	}
	if draft.ProcessingFees.IsNegative() {
		result.addError(prefix+".processing_fees",
			fmt.Sprintf("itemized tickets exceed the amount paid by %s", draft.ProcessingFees.Abs()))
	}
}

func checkLineAmount(field string, line LineItem, result *ValidationResult) {
	if line.UnitPrice == nil || line.Quantity <= 0 {
		return
	}
	expected := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	if line.Amount.Sub(expected).Abs().GreaterThan(centTolerance) {
		result.addError(field, fmt.Sprintf("amount %s does not equal price %s x quantity %d", line.Amount, line.UnitPrice, line.Quantity))
	}
}

// validateShape applies the registration-type rules: individual
// registrations bill attendees, organisation registrations bill exactly
// one lodge line. An embedded attendee count that disagrees with the
// ticket rows is cosmetic.
func validateShape(input ComposeInput, customer *Draft, result *ValidationResult) {
	attendeeOwned := 0
	lodgeOwned := 0
	for _, ticket := range input.Tickets {
		switch ticket.OwnerType {
		case enums.TicketOwnerTypeAttendee:
			attendeeOwned++
		case enums.TicketOwnerTypeLodge:
			lodgeOwned++
		}
	}

	switch {
	case input.Registration.RegistrationType.IsIndividual():
		if attendeeOwned == 0 && len(input.Tickets) > 0 {
			result.addError("tickets", "individual registration has no attendee-owned tickets")
		}
	default:
		if lodgeOwned == 0 && len(input.Tickets) > 0 {
			result.addError("tickets", "organisation registration has no lodge-owned tickets")
		}
		if embedded, ok := embeddedAttendeeCount(input.Registration.Data); ok && embedded != attendeeOwned && attendeeOwned > 0 {
			result.addWarning("attendees",
				fmt.Sprintf("document lists %d attendees but %d attendee tickets were extracted", embedded, attendeeOwned))
		}
	}

	if len(input.Tickets) == 0 {
		result.addWarning("tickets", "no tickets extracted; invoice bills processing fees only")
	}
}

func embeddedAttendeeCount(data map[string]any) (int, bool) {
	sources := []map[string]any{data}
	if inner, ok := data["registrationData"].(map[string]any); ok {
		sources = append(sources, inner)
	}
	for _, source := range sources {
		if attendees, ok := source["attendees"].([]any); ok {
			return len(attendees), true
		}
	}
	return 0, false
}
