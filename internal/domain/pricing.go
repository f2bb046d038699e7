package domain

// DefaultVolumetricDivisor is the standard air-freight divisor converting
// cubic centimetres into kilograms.
const DefaultVolumetricDivisor = 5000

// QuoteAddOn identifies an optional flat-fee service selected on a quote.
type QuoteAddOn string

// ShipmentQuoteRequest is the immutable input to a price calculation. It is
// never persisted; the resulting breakdown is recomputed on every change.
type ShipmentQuoteRequest struct {
	OriginCountry          string       `json:"originCountry"`
	DestinationCountry     string       `json:"destinationCountry"`
	CourierService         string       `json:"courierService"`
	WeightGrams            int64        `json:"weightGrams"`
	LengthCm               int          `json:"lengthCm"`
	WidthCm                int          `json:"widthCm"`
	HeightCm               int          `json:"heightCm"`
	DeclaredItems          []QuoteItem  `json:"declaredItems"`
	AddOnIDs               []QuoteAddOn `json:"addOnIds"`
	CourierChargeOverride  *int64       `json:"courierChargeOverride,omitempty"`
	HandlingChargeOverride *int64       `json:"handlingChargeOverride,omitempty"`
}

// QuoteItem carries one declared item value used for the items total.
type QuoteItem struct {
	DeclaredValue Money `json:"declaredValue"`
	Quantity      int   `json:"quantity"`
}

// PriceBreakdown is the derived output of the pricing engine. When no rate
// rule covers the route and billable weight, Transportable is false and no
// price fields are populated; that is data, not an error.
type PriceBreakdown struct {
	Transportable       bool      `json:"transportable"`
	SelectedRate        *RateRule `json:"-"`
	BillableWeightGrams int64     `json:"billableWeightGrams,omitempty"`
	ItemsTotal          int64     `json:"itemsTotal,omitempty"`
	AddOnsTotal         int64     `json:"addOnsTotal,omitempty"`
	CourierCharge       int64     `json:"courierCharge,omitempty"`
	HandlingCharge      int64     `json:"handlingCharge,omitempty"`
	FinalPrice          int64     `json:"finalPrice,omitempty"`
	Currency            string    `json:"currency,omitempty"`
	TransitTime         string    `json:"transitTime,omitempty"`
}

// VolumetricWeightGrams converts dimensions into an equivalent weight using
// the freight convention grams = cm³ × 1000 / divisor.
func VolumetricWeightGrams(lengthCm, widthCm, heightCm int, divisor int64) int64 {
	if lengthCm <= 0 || widthCm <= 0 || heightCm <= 0 {
		return 0
	}
	if divisor <= 0 {
		divisor = DefaultVolumetricDivisor
	}
	cubic := int64(lengthCm) * int64(widthCm) * int64(heightCm)
	return cubic * 1000 / divisor
}

// BillableWeightGrams returns the greater of actual and volumetric weight.
func BillableWeightGrams(actualGrams int64, lengthCm, widthCm, heightCm int, divisor int64) int64 {
	volumetric := VolumetricWeightGrams(lengthCm, widthCm, heightCm, divisor)
	if volumetric > actualGrams {
		return volumetric
	}
	return actualGrams
}
