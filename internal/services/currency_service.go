package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cargolink/api/internal/repositories"
)

// ErrCurrencyInvalidInput indicates an unusable conversion request.
var ErrCurrencyInvalidInput = errors.New("currency service: invalid input")

// ErrCurrencyUnavailable indicates the rate store could not be consulted.
var ErrCurrencyUnavailable = errors.New("currency service: unavailable")

var errRateRepoRequired = errors.New("currency service: rate repository is required")

// CurrencyServiceDeps wires the stored rate table.
type CurrencyServiceDeps struct {
	Rates  repositories.ExchangeRateRepository
	Logger func(context.Context, string, map[string]any)
}

type currencyService struct {
	rates  repositories.ExchangeRateRepository
	logger func(context.Context, string, map[string]any)
}

// NewCurrencyService constructs a CurrencyService enforcing dependency validation.
func NewCurrencyService(deps CurrencyServiceDeps) (CurrencyService, error) {
	if deps.Rates == nil {
		return nil, errRateRepoRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &currencyService{rates: deps.Rates, logger: logger}, nil
}

// Convert multiplies the amount by the most recent active rate for the pair.
// A missing rate is a soft failure: the result is marked unavailable and the
// caller shows the original amount untouched.
func (s *currencyService) Convert(ctx context.Context, amount int64, from, to string) (ConversionResult, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return ConversionResult{}, fmt.Errorf("%w: both currencies are required", ErrCurrencyInvalidInput)
	}
	if amount < 0 {
		return ConversionResult{}, fmt.Errorf("%w: amount cannot be negative", ErrCurrencyInvalidInput)
	}

	if from == to {
		return ConversionResult{Available: true, Amount: amount, Rate: 1, From: from, To: to}, nil
	}

	rate, err := s.rates.ActiveRate(ctx, from, to)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "currency.rate_missing", map[string]any{"from": from, "to": to})
			return ConversionResult{Available: false, From: from, To: to}, nil
		}
		return ConversionResult{}, fmt.Errorf("%w: %v", ErrCurrencyUnavailable, err)
	}

	converted := math.Round(float64(amount) * rate.Rate)
	if converted > math.MaxInt64 || converted < 0 {
		return ConversionResult{}, fmt.Errorf("%w: converted amount overflow", ErrCurrencyInvalidInput)
	}

	return ConversionResult{
		Available: true,
		Amount:    int64(converted),
		Rate:      rate.Rate,
		From:      from,
		To:        to,
	}, nil
}
