package repositories

import (
	"context"
	"time"

	"github.com/cargolink/api/internal/domain"
)

// RateRuleRepository reads the priced weight brackets of the rate table.
type RateRuleRepository interface {
	// ListForRoute returns the rules for an origin/destination pair across all
	// courier services, in table order.
	ListForRoute(ctx context.Context, origin, dest string) ([]domain.RateRule, error)
	// ListCouriers returns the distinct courier services priced for a route.
	ListCouriers(ctx context.Context, origin, dest string) ([]string, error)
}

// ExchangeRateRepository reads stored currency conversion factors.
type ExchangeRateRepository interface {
	// ActiveRate returns the most recently effective active rate for the pair.
	ActiveRate(ctx context.Context, from, to string) (domain.ExchangeRate, error)
}

// DraftRepository is the user-scoped remote draft store.
type DraftRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.OrderDraft, error)
	FindByID(ctx context.Context, userID, draftID string) (domain.OrderDraft, error)
	// Upsert writes the draft header and replaces its item list wholesale.
	Upsert(ctx context.Context, userID string, draft domain.OrderDraft) error
	Delete(ctx context.Context, userID, draftID string) error
}

// LocalDraftStore is the device-scoped draft store consulted before a user
// authenticates. Writes are whole-document and last-write-wins.
type LocalDraftStore interface {
	List(ctx context.Context, deviceID string) ([]domain.OrderDraft, error)
	Put(ctx context.Context, deviceID string, draft domain.OrderDraft) error
	Delete(ctx context.Context, deviceID, draftID string) error
	// Replace swaps the device's full draft set in one write.
	Replace(ctx context.Context, deviceID string, drafts []domain.OrderDraft) error
}

// ShipmentRepository persists finalised shipments and their payment state.
type ShipmentRepository interface {
	Create(ctx context.Context, shipment domain.Shipment) error
	FindByID(ctx context.Context, shipmentID string) (domain.Shipment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.Shipment, error)
	UpdatePaymentStatus(ctx context.Context, shipmentID string, status domain.PaymentStatus, receiptRef string, at time.Time) error
}

// WarehouseRepository reads receiving addresses for the warehouse flow.
type WarehouseRepository interface {
	ListActive(ctx context.Context) ([]domain.Warehouse, error)
	ListByCountry(ctx context.Context, countryCode string) ([]domain.Warehouse, error)
}

// HealthRepository reports backing store reachability for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
