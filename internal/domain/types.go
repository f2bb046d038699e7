package domain

import (
	"strings"
	"time"
)

// Money is an amount expressed in minor currency units (e.g. paise, cents)
// together with its ISO 4217 currency code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ServiceType distinguishes the two intake flows for a draft: purchasing a
// product link on the customer's behalf, or receiving goods at a warehouse.
type ServiceType string

const (
	ServiceTypeLink      ServiceType = "link"
	ServiceTypeWarehouse ServiceType = "warehouse"
)

// Valid reports whether the service type is one of the supported flows.
func (s ServiceType) Valid() bool {
	return s == ServiceTypeLink || s == ServiceTypeWarehouse
}

// RateRule is a priced weight bracket keyed by origin, destination and
// courier service. Rules are owned by the rate table and never mutated by
// the pricing engine. Position preserves table order for tie-breaking.
type RateRule struct {
	ID             string
	OriginCountry  string
	DestCountry    string
	CourierService string
	MinWeightGrams int64
	MaxWeightGrams int64
	BasePrice      int64
	Currency       string
	TransitTime    string
	Position       int
}

// Matches reports whether the rule covers the given route and billable weight.
func (r RateRule) Matches(origin, dest, courier string, billableGrams int64) bool {
	return strings.EqualFold(r.OriginCountry, origin) &&
		strings.EqualFold(r.DestCountry, dest) &&
		strings.EqualFold(r.CourierService, courier) &&
		billableGrams >= r.MinWeightGrams &&
		billableGrams <= r.MaxWeightGrams
}

// ExchangeRate is one stored conversion factor for a currency pair. Among all
// active records for a pair the one with the most recent EffectiveDate wins.
type ExchangeRate struct {
	ID            string
	FromCurrency  string
	ToCurrency    string
	Rate          float64
	Active        bool
	EffectiveDate time.Time
}

// OrderDraftItem is a single product entry inside a draft. Items have no
// identity of their own beyond their position in the parent list.
type OrderDraftItem struct {
	ProductURL    string `json:"productUrl"`
	ProductName   string `json:"productName"`
	ProductNote   string `json:"productNote,omitempty"`
	Price         int64  `json:"price"`
	ValueCurrency string `json:"valueCurrency"`
	Quantity      int    `json:"quantity"`
}

// DraftSyncState tracks where a draft sits in its local/remote lifecycle.
// There is no conflict state: the remote copy wins wholesale on pull.
type DraftSyncState string

const (
	// DraftStateCreated marks a draft that exists only in local storage.
	DraftStateCreated DraftSyncState = "created"
	// DraftStateSynced marks a draft mirrored to the remote store.
	DraftStateSynced DraftSyncState = "synced"
	// DraftStateUpdated marks a synced draft with local changes pending re-push.
	DraftStateUpdated DraftSyncState = "updated"
)

// OrderDraft is a saved, not-yet-submitted shipment definition. Drafts live
// in device-scoped local storage until the owner authenticates, at which
// point they are mirrored into the remote store keyed by user id.
type OrderDraft struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	SavedAt                time.Time        `json:"savedAt"`
	ServiceType            ServiceType      `json:"serviceType"`
	SourceCountryCode      string           `json:"sourceCountryCode"`
	DestinationCountryCode string           `json:"destinationCountryCode,omitempty"`
	Items                  []OrderDraftItem `json:"items"`
	PurchasedDate          *time.Time       `json:"purchasedDate,omitempty"`
	PurchasedSite          string           `json:"purchasedSite,omitempty"`
	InvoiceURLs            []string         `json:"invoiceUrls,omitempty"`
	ProductImageURLs       []string         `json:"productImageUrls,omitempty"`
	SyncState              DraftSyncState   `json:"syncState,omitempty"`
}

// SyncableItems returns the draft items eligible for remote persistence.
// Empty-URL items are tolerated at entry time and filtered here instead.
func (d OrderDraft) SyncableItems() []OrderDraftItem {
	items := make([]OrderDraftItem, 0, len(d.Items))
	for _, item := range d.Items {
		if strings.TrimSpace(item.ProductURL) == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// PaymentMode selects between the online gateway and an offline bank transfer.
type PaymentMode string

const (
	PaymentModeOnline       PaymentMode = "online"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
)

// PaymentStatus is the shipment-level view of the payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Shipment is a finalised, priced shipment awaiting or holding payment.
// FinalPrice is the displayed total; ChargedAmount additionally carries the
// online-payment surcharge and is what the gateway order was created for.
// The two intentionally differ for online payments.
type Shipment struct {
	ID                     string
	UserID                 string
	CustomerEmail          string
	CustomerName           string
	DraftID                string
	OriginCountry          string
	DestCountry            string
	CourierService         string
	WeightGrams            int64
	LengthCm               int
	WidthCm                int
	HeightCm               int
	ItemsTotal             int64
	AddOnsTotal            int64
	CourierCharge          int64
	HandlingCharge         int64
	FinalPrice             int64
	ChargedAmount          int64
	Currency               string
	PaymentMode            PaymentMode
	PaymentStatus          PaymentStatus
	GatewayOrderID         string
	ReceiptRef             string
	CourierChargeOverride  *int64
	HandlingChargeOverride *int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Warehouse is a receiving address operated in a source country.
type Warehouse struct {
	ID          string
	CountryCode string
	Name        string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Phone       string
	Active      bool
}
