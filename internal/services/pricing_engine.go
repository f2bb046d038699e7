package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

// ErrPricingInvalidInput indicates the caller supplied an unusable quote request.
var ErrPricingInvalidInput = errors.New("pricing engine: invalid input")

// ErrPricingUnavailable indicates the rate table could not be consulted.
var ErrPricingUnavailable = errors.New("pricing engine: unavailable")

var errPricingOverflow = fmt.Errorf("%w: amount overflow", ErrPricingInvalidInput)

var errRatesRequired = errors.New("pricing engine: rate repository is required")

// PricingEngineDeps wires the rate table and tunable constants.
type PricingEngineDeps struct {
	Rates                  repositories.RateRuleRepository
	VolumetricDivisor      int64
	AddOnUnitPrice         int64
	CourierChargeBasisPts  int64
	HandlingChargeBasisPts int64
	Logger                 func(context.Context, string, map[string]any)
}

type pricingEngine struct {
	rates      repositories.RateRuleRepository
	divisor    int64
	addOnPrice int64
	courierBP  int64
	handlingBP int64
	logger     func(context.Context, string, map[string]any)
}

// NewPricingEngine constructs a PricingEngine enforcing dependency validation.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Rates == nil {
		return nil, errRatesRequired
	}

	divisor := deps.VolumetricDivisor
	if divisor <= 0 {
		divisor = domain.DefaultVolumetricDivisor
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &pricingEngine{
		rates:      deps.Rates,
		divisor:    divisor,
		addOnPrice: deps.AddOnUnitPrice,
		courierBP:  deps.CourierChargeBasisPts,
		handlingBP: deps.HandlingChargeBasisPts,
		logger:     logger,
	}, nil
}

// Quote derives the full price breakdown. An unserviceable route yields
// Transportable=false, not an error.
func (e *pricingEngine) Quote(ctx context.Context, req domain.ShipmentQuoteRequest) (domain.PriceBreakdown, error) {
	if err := validateQuoteRequest(req); err != nil {
		return domain.PriceBreakdown{}, err
	}

	billable := domain.BillableWeightGrams(req.WeightGrams, req.LengthCm, req.WidthCm, req.HeightCm, e.divisor)

	rules, err := e.rates.ListForRoute(ctx, req.OriginCountry, req.DestinationCountry)
	if err != nil {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	selected := selectRule(rules, req, billable)
	if selected == nil {
		e.logger(ctx, "pricing.unserviceable", map[string]any{
			"origin":         req.OriginCountry,
			"destination":    req.DestinationCountry,
			"courier":        req.CourierService,
			"billable_grams": billable,
		})
		return domain.PriceBreakdown{Transportable: false, BillableWeightGrams: billable}, nil
	}

	itemsTotal, err := sumDeclaredItems(req.DeclaredItems)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}

	addOnsTotal, err := mulInt64(int64(len(req.AddOnIDs)), e.addOnPrice)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}

	courierCharge := basisPoints(itemsTotal, e.courierBP)
	if req.CourierChargeOverride != nil {
		courierCharge = *req.CourierChargeOverride
	}
	handlingCharge := basisPoints(itemsTotal, e.handlingBP)
	if req.HandlingChargeOverride != nil {
		handlingCharge = *req.HandlingChargeOverride
	}

	finalPrice := selected.BasePrice
	for _, component := range []int64{itemsTotal, addOnsTotal, courierCharge, handlingCharge} {
		finalPrice, err = addInt64(finalPrice, component)
		if err != nil {
			return domain.PriceBreakdown{}, err
		}
	}

	return domain.PriceBreakdown{
		Transportable:       true,
		SelectedRate:        selected,
		BillableWeightGrams: billable,
		ItemsTotal:          itemsTotal,
		AddOnsTotal:         addOnsTotal,
		CourierCharge:       courierCharge,
		HandlingCharge:      handlingCharge,
		FinalPrice:          finalPrice,
		Currency:            selected.Currency,
		TransitTime:         selected.TransitTime,
	}, nil
}

// Couriers lists the courier services priced for a route.
func (e *pricingEngine) Couriers(ctx context.Context, origin, dest string) ([]string, error) {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", ErrPricingInvalidInput)
	}
	couriers, err := e.rates.ListCouriers(ctx, origin, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	return couriers, nil
}

func validateQuoteRequest(req domain.ShipmentQuoteRequest) error {
	if strings.TrimSpace(req.OriginCountry) == "" {
		return fmt.Errorf("%w: origin country is required", ErrPricingInvalidInput)
	}
	if strings.TrimSpace(req.DestinationCountry) == "" {
		return fmt.Errorf("%w: destination country is required", ErrPricingInvalidInput)
	}
	if strings.TrimSpace(req.CourierService) == "" {
		return fmt.Errorf("%w: courier service is required", ErrPricingInvalidInput)
	}
	if req.WeightGrams <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrPricingInvalidInput)
	}
	if req.LengthCm < 0 || req.WidthCm < 0 || req.HeightCm < 0 {
		return fmt.Errorf("%w: dimensions cannot be negative", ErrPricingInvalidInput)
	}
	for i, item := range req.DeclaredItems {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrPricingInvalidInput, i)
		}
		if item.DeclaredValue.Amount < 0 {
			return fmt.Errorf("%w: item %d declared value cannot be negative", ErrPricingInvalidInput, i)
		}
	}
	if req.CourierChargeOverride != nil && *req.CourierChargeOverride < 0 {
		return fmt.Errorf("%w: courier charge override cannot be negative", ErrPricingInvalidInput)
	}
	if req.HandlingChargeOverride != nil && *req.HandlingChargeOverride < 0 {
		return fmt.Errorf("%w: handling charge override cannot be negative", ErrPricingInvalidInput)
	}
	return nil
}

// selectRule picks the cheapest covering rule; ties go to the earlier row.
func selectRule(rules []domain.RateRule, req domain.ShipmentQuoteRequest, billable int64) *domain.RateRule {
	var selected *domain.RateRule
	for i := range rules {
		rule := &rules[i]
		if !rule.Matches(req.OriginCountry, req.DestinationCountry, req.CourierService, billable) {
			continue
		}
		if selected == nil || rule.BasePrice < selected.BasePrice {
			selected = rule
		}
	}
	return selected
}

func sumDeclaredItems(items []domain.QuoteItem) (int64, error) {
	var total int64
	for _, item := range items {
		line, err := mulInt64(item.DeclaredValue.Amount, int64(item.Quantity))
		if err != nil {
			return 0, err
		}
		total, err = addInt64(total, line)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func basisPoints(amount, bp int64) int64 {
	return amount * bp / 10000
}

func addInt64(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, errPricingOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, errPricingOverflow
	}
	return a + b, nil
}

func mulInt64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/b != a {
		return 0, errPricingOverflow
	}
	return result, nil
}
