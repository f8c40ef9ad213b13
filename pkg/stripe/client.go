package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultPageLimit = 100
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	environment string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)
	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ListChargesParams scopes a charge listing to a created window.
type ListChargesParams struct {
	Begin time.Time
	End   time.Time
	Limit int
}

// ListCharges pages through every charge created inside the window, with
// the balance transaction expanded so fee amounts come back in one pass.
func (c *Client) ListCharges(ctx context.Context, params ListChargesParams) ([]*stripe.Charge, error) {
	if c == nil {
		return nil, errAPIKeyRequired
	}

	listParams := chargeListParams(ctx, params)

	charges := []*stripe.Charge{}
	iter := charge.List(listParams)
	for iter.Next() {
		charges = append(charges, iter.Charge())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing stripe charges: %w", err)
	}
	return charges, nil
}

// chargeListParams shapes the list call: capped page size, the created
// window, and the balance transaction expanded so fee amounts come back
// without a second fetch.
func chargeListParams(ctx context.Context, params ListChargesParams) *stripe.ChargeListParams {
	limit := int64(params.Limit)
	if limit <= 0 {
		limit = defaultPageLimit
	}

	listParams := &stripe.ChargeListParams{}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(limit)
	listParams.AddExpand("data.balance_transaction")
	if !params.Begin.IsZero() {
		listParams.CreatedRange = &stripe.RangeQueryParams{
			GreaterThanOrEqual: params.Begin.Unix(),
		}
	}
	if !params.End.IsZero() {
		if listParams.CreatedRange == nil {
			listParams.CreatedRange = &stripe.RangeQueryParams{}
		}
		listParams.CreatedRange.LesserThan = params.End.Unix()
	}
	return listParams
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
