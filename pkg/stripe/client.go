package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// Stripe accepts expires_at between 30 minutes and 24 hours after creation.
	minSessionLifetime = 31 * time.Minute
	maxSessionLifetime = 24 * time.Hour
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API key plus env-specific metadata.
type Client struct {
	environment   string
	signingSecret string
	successURL    string
	cancelURL     string
}

// CheckoutLine is one priced row on a hosted checkout page. UnitAmount is in
// the currency's minor unit.
type CheckoutLine struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutSessionInput describes the hosted payment page for one order.
// ExpiresAt is when the order stops accepting payment; zero leaves Stripe's default.
type CheckoutSessionInput struct {
	OrderID   string
	Currency  string
	Lines     []CheckoutLine
	ExpiresAt time.Time
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

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreateCheckoutSession opens a hosted payment page. The order id rides on
// client_reference_id so the completion webhook can find the order again.
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	if c == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if !input.ExpiresAt.IsZero() {
		input.ExpiresAt = ClampSessionExpiry(input.ExpiresAt, time.Now())
	}
	params := buildSessionParams(input, c.successURL, c.cancelURL)
	params.Context = ctx
	return session.New(params)
}

// ConstructEvent verifies the signature header and decodes the event.
func (c *Client) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, header, c.SigningSecret())
}

func buildSessionParams(input CheckoutSessionInput, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(line.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(input.OrderID),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		LineItems:         lines,
	}
	if !input.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(input.ExpiresAt.Unix())
	}
	params.AddMetadata("order_id", input.OrderID)
	return params
}

// ClampSessionExpiry fits deadline into the window Stripe accepts for a session
// created at now.
func ClampSessionExpiry(deadline, now time.Time) time.Time {
	if earliest := now.Add(minSessionLifetime); deadline.Before(earliest) {
		return earliest
	}
	if latest := now.Add(maxSessionLifetime); deadline.After(latest) {
		return latest
	}
	return deadline
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
