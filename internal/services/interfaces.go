package services

import (
	"context"

	"github.com/cargolink/api/internal/domain"
)

// PricingEngine derives a shipment price breakdown from the rate table.
type PricingEngine interface {
	Quote(ctx context.Context, req domain.ShipmentQuoteRequest) (domain.PriceBreakdown, error)
	// Couriers lists the courier services priced for a route.
	Couriers(ctx context.Context, origin, dest string) ([]string, error)
}

// ConversionResult is a converted amount, or an unavailable marker when no
// active rate covers the pair.
type ConversionResult struct {
	Available bool    `json:"available"`
	Amount    int64   `json:"amount,omitempty"`
	Rate      float64 `json:"rate,omitempty"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

// CurrencyService converts minor-unit amounts between currencies using the
// stored rate table.
type CurrencyService interface {
	Convert(ctx context.Context, amount int64, from, to string) (ConversionResult, error)
}

// DraftScope names the storage a draft operation acts against. Anonymous
// requests carry only a device id; authenticated requests carry both.
type DraftScope struct {
	UserID   string
	DeviceID string
}

// SyncReport summarises one local-to-remote draft reconciliation.
type SyncReport struct {
	Pushed int                 `json:"pushed"`
	Failed []string            `json:"failed,omitempty"`
	Total  int                 `json:"total"`
	Drafts []domain.OrderDraft `json:"drafts"`
}

// DraftService manages saved drafts across the local and remote stores.
type DraftService interface {
	List(ctx context.Context, scope DraftScope) ([]domain.OrderDraft, error)
	Get(ctx context.Context, scope DraftScope, draftID string) (domain.OrderDraft, error)
	Save(ctx context.Context, scope DraftScope, draft domain.OrderDraft) (domain.OrderDraft, error)
	Delete(ctx context.Context, scope DraftScope, draftID string) error
	// Sync pushes local drafts to the remote store, then pulls the
	// authoritative remote list back into local storage.
	Sync(ctx context.Context, scope DraftScope) (SyncReport, error)
}

// CheckoutCommand finalises a draft into a priced shipment.
type CheckoutCommand struct {
	UserID      string
	UserEmail   string
	UserName    string
	DraftID     string
	Quote       domain.ShipmentQuoteRequest
	PaymentMode domain.PaymentMode
	GatewayKey  string
}

// CheckoutResult carries the persisted shipment and, for online payments,
// the gateway handle the client completes payment against.
type CheckoutResult struct {
	Shipment       domain.Shipment
	GatewayOrderID string
	ClientSecret   string
}

// CheckoutService turns drafts into shipments and drives the payment flow.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
	// HandlePaymentCaptured reacts to a verified gateway capture event.
	HandlePaymentCaptured(ctx context.Context, gatewayOrderID, receiptRef string) error
	// HandlePaymentFailed reacts to a verified gateway failure event.
	HandlePaymentFailed(ctx context.Context, gatewayOrderID string) error
}
