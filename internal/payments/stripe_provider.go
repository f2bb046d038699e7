package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey  string
	Logger  StripeLogger
	Clock   func() time.Time
	Intents stripePaymentIntentAPI
}

// StripeProvider implements the Provider interface using Stripe payment intents.
type StripeProvider struct {
	intents stripePaymentIntentAPI
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, nil)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents: intents,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateOrder opens a payment intent for the surcharge-inclusive amount.
func (p *StripeProvider) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	if req.Amount <= 0 {
		return GatewayOrder{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return GatewayOrder{}, errors.New("stripe: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := p.intents.New(params)
	if err != nil {
		p.logger(ctx, "stripe.create_order.error", map[string]any{"error": err.Error()})
		return GatewayOrder{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "stripe.create_order", map[string]any{
		"intent_id": intent.ID,
		"amount":    req.Amount,
		"currency":  currency,
	})

	return GatewayOrder{
		ID:           intent.ID,
		Provider:     "stripe",
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		CreatedAt:    p.clock(),
	}, nil
}

// LookupPayment fetches the intent state for reconciliation.
func (p *StripeProvider) LookupPayment(ctx context.Context, orderID string) (PaymentDetails, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentDetails{}, errors.New("stripe: order id is required")
	}

	intent, err := p.intents.Get(orderID, nil)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	details := PaymentDetails{
		Provider: "stripe",
		OrderID:  intent.ID,
		Status:   mapIntentStatus(intent.Status),
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
	}
	if intent.LatestCharge != nil {
		details.ReceiptRef = intent.LatestCharge.ID
		if intent.LatestCharge.Created > 0 {
			capturedAt := time.Unix(intent.LatestCharge.Created, 0).UTC()
			details.CapturedAt = &capturedAt
		}
	}
	return details, nil
}

func mapIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
