package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a terminal failure.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// OrderRequest captures the payload required to open a gateway order. Amount
// is the surcharge-inclusive total in minor units.
type OrderRequest struct {
	Amount         int64
	Currency       string
	CustomerEmail  string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// GatewayOrder represents the gateway-side order the client completes payment
// against.
type GatewayOrder struct {
	ID           string
	Provider     string
	ClientSecret string
	Amount       int64
	Currency     string
	CreatedAt    time.Time
}

// PaymentDetails normalises gateway specific fields for reconciliation.
type PaymentDetails struct {
	Provider   string
	OrderID    string
	ReceiptRef string
	Status     Status
	Amount     int64
	Currency   string
	CapturedAt *time.Time
}

// Provider defines the contract for payment gateway adapters to implement.
type Provider interface {
	CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error)
	LookupPayment(ctx context.Context, orderID string) (PaymentDetails, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{providers: copyMap}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolveProvider(preferred string) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if key := strings.TrimSpace(strings.ToLower(preferred)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
		return "", nil, ErrUnsupportedProvider
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateOrder delegates to the resolved provider.
func (m *Manager) CreateOrder(ctx context.Context, preferred string, req OrderRequest) (GatewayOrder, error) {
	key, provider, err := m.resolveProvider(preferred)
	if err != nil {
		return GatewayOrder{}, err
	}
	order, err := provider.CreateOrder(ctx, req)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: create order via %s: %w", key, err)
	}
	if order.Provider == "" {
		order.Provider = key
	}
	return order, nil
}

// LookupPayment delegates to the resolved provider.
func (m *Manager) LookupPayment(ctx context.Context, preferred, orderID string) (PaymentDetails, error) {
	key, provider, err := m.resolveProvider(preferred)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := provider.LookupPayment(ctx, orderID)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("payments: lookup payment via %s: %w", key, err)
	}
	if details.Provider == "" {
		details.Provider = key
	}
	return details, nil
}
