package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

type stubExchangeRateRepository struct {
	rate domain.ExchangeRate
	err  error
}

func (s *stubExchangeRateRepository) ActiveRate(context.Context, string, string) (domain.ExchangeRate, error) {
	if s.err != nil {
		return domain.ExchangeRate{}, s.err
	}
	return s.rate, nil
}

func TestNewCurrencyServiceRequiresRates(t *testing.T) {
	if _, err := NewCurrencyService(CurrencyServiceDeps{}); err == nil {
		t.Fatal("expected error without rate repository")
	}
}

func TestConvertMultipliesByStoredRate(t *testing.T) {
	svc, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: &stubExchangeRateRepository{rate: domain.ExchangeRate{
			FromCurrency:  "JPY",
			ToCurrency:    "INR",
			Rate:          0.56,
			Active:        true,
			EffectiveDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Convert(context.Background(), 100000, "jpy", "inr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available {
		t.Fatal("expected conversion available")
	}
	if result.Amount != 56000 {
		t.Fatalf("expected 56000, got %d", result.Amount)
	}
	if result.From != "JPY" || result.To != "INR" {
		t.Fatalf("expected normalised codes, got %s/%s", result.From, result.To)
	}
}

func TestConvertMissingRateSoftFails(t *testing.T) {
	svc, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: &stubExchangeRateRepository{err: repositories.ErrNotFound},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Convert(context.Background(), 100000, "JPY", "INR")
	if err != nil {
		t.Fatalf("expected soft failure, got error: %v", err)
	}
	if result.Available {
		t.Fatal("expected unavailable result")
	}
	if result.Amount != 0 {
		t.Fatalf("expected zero amount, got %d", result.Amount)
	}
}

func TestConvertSameCurrencyIsIdentity(t *testing.T) {
	svc, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: &stubExchangeRateRepository{err: repositories.ErrNotFound},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Convert(context.Background(), 4200, "INR", "inr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available || result.Amount != 4200 || result.Rate != 1 {
		t.Fatalf("expected identity conversion, got %+v", result)
	}
}

func TestConvertStoreFailurePropagates(t *testing.T) {
	svc, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: &stubExchangeRateRepository{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Convert(context.Background(), 100, "JPY", "INR"); !errors.Is(err, ErrCurrencyUnavailable) {
		t.Fatalf("expected ErrCurrencyUnavailable, got %v", err)
	}
}

func TestConvertValidation(t *testing.T) {
	svc, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: &stubExchangeRateRepository{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Convert(context.Background(), 100, "", "INR"); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.Convert(context.Background(), -1, "JPY", "INR"); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
