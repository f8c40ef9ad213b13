package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodgetix/reconcile/pkg/db/models"
	"github.com/lodgetix/reconcile/pkg/enums"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// Confidence is stamped on every successful identifier match. Matching is
// exact on identifiers, so there is no partial scoring.
const Confidence = 100

type registrationFinder interface {
	FindBySquarePaymentID(ctx context.Context, squarePaymentID string) ([]models.RegistrationImport, error)
	FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) ([]models.RegistrationImport, error)
}

// Result is the outcome of matching one staged payment. A nil
// Registration with MatchMethodNone means no registration anywhere
// references the payment.
type Result struct {
	Registration *models.RegistrationImport
	Method       enums.MatchMethod
	Confidence   int
}

// Found reports whether the match attached a registration.
func (r *Result) Found() bool {
	return r != nil && r.Registration != nil
}

// Matcher looks up staged registrations by payment identifier, walking a
// fixed ladder: the gateway's own payment id, then the payment intent id,
// then cross-referenced slots where one gateway's id was recorded in the
// other's field.
type Matcher struct {
	registrations registrationFinder
	logg          *logger.Logger
}

// NewMatcher wires a matcher over the staged registration store.
func NewMatcher(registrations registrationFinder, logg *logger.Logger) (*Matcher, error) {
	if registrations == nil {
		return nil, errors.New("registration finder is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Matcher{registrations: registrations, logg: logg}, nil
}

// Match attempts each rung of the ladder in order and returns the first
// hit. Multiple candidates on a rung are disambiguated by amount
// proximity rather than taking whichever row happened to come back first.
func (m *Matcher) Match(ctx context.Context, payment *models.PaymentImport) (*Result, error) {
	if payment == nil {
		return nil, errors.New("payment import is required")
	}

	for _, rung := range m.ladder(payment) {
		if rung.identifier == "" {
			continue
		}
		candidates, err := rung.find(ctx, rung.identifier)
		if err != nil {
			return nil, fmt.Errorf("matching %s payment %s: %w", payment.Source, payment.SourcePaymentID, err)
		}
		if len(candidates) == 0 {
			continue
		}
		chosen := m.disambiguate(ctx, payment, candidates, rung.method)
		return &Result{Registration: chosen, Method: rung.method, Confidence: Confidence}, nil
	}

	return &Result{Method: enums.MatchMethodNone}, nil
}

type rung struct {
	method     enums.MatchMethod
	identifier string
	find       func(ctx context.Context, identifier string) ([]models.RegistrationImport, error)
}

func (m *Matcher) ladder(payment *models.PaymentImport) []rung {
	intentID := ""
	if payment.PaymentIntentID != nil {
		intentID = *payment.PaymentIntentID
	}

	switch payment.Source {
	case enums.PaymentSourceSquare:
		return []rung{
			{enums.MatchMethodPaymentID, payment.SourcePaymentID, m.registrations.FindBySquarePaymentID},
			// Some legacy registrations recorded the Square payment id in
			// the Stripe intent slot.
			{enums.MatchMethodCrossReference, payment.SourcePaymentID, m.registrations.FindByStripePaymentIntentID},
		}
	case enums.PaymentSourceStripe:
		return []rung{
			{enums.MatchMethodPaymentID, payment.SourcePaymentID, m.registrations.FindByStripePaymentIntentID},
			{enums.MatchMethodPaymentIntentID, intentID, m.registrations.FindByStripePaymentIntentID},
			{enums.MatchMethodCrossReference, payment.SourcePaymentID, m.registrations.FindBySquarePaymentID},
		}
	default:
		return nil
	}
}

// disambiguate picks among simultaneous matches by closeness of the
// registration's paid total to the payment's gross amount. Ties keep the
// earliest-created registration.
func (m *Matcher) disambiguate(ctx context.Context, payment *models.PaymentImport, candidates []models.RegistrationImport, method enums.MatchMethod) *models.RegistrationImport {
	if len(candidates) == 1 {
		return &candidates[0]
	}

	best := 0
	bestDistance := candidates[0].TotalAmountPaid.Sub(payment.GrossAmount).Abs()
	for i := 1; i < len(candidates); i++ {
		distance := candidates[i].TotalAmountPaid.Sub(payment.GrossAmount).Abs()
		if distance.LessThan(bestDistance) {
			best = i
			bestDistance = distance
		}
	}

	logCtx := m.logg.WithPaymentID(ctx, payment.SourcePaymentID)
	logCtx = m.logg.WithFields(logCtx, map[string]any{
		"candidates":   len(candidates),
		"match_method": method.String(),
		"chosen":       candidates[best].RegistrationID.String(),
	})
	m.logg.Warn(logCtx, "multiple registrations reference one payment, picked closest amount")

	return &candidates[best]
}
