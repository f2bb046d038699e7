package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargolink/api/internal/domain"
)

// ExchangeRateRepository implements repositories.ExchangeRateRepository using PostgreSQL.
type ExchangeRateRepository struct {
	pool DBTX
}

// NewExchangeRateRepository creates a new PostgreSQL-backed exchange rate repository.
func NewExchangeRateRepository(pool DBTX) *ExchangeRateRepository {
	return &ExchangeRateRepository{pool: pool}
}

// ActiveRate returns the most recently effective active rate for the pair.
// Returns repositories.ErrNotFound when no active rate exists.
func (r *ExchangeRateRepository) ActiveRate(ctx context.Context, from, to string) (domain.ExchangeRate, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, active, effective_date
		FROM exchange_rates
		WHERE UPPER(from_currency) = $1 AND UPPER(to_currency) = $2 AND active
		ORDER BY effective_date DESC
		LIMIT 1`

	var rate domain.ExchangeRate
	err := r.pool.QueryRow(ctx, query, normaliseCurrency(from), normaliseCurrency(to)).Scan(
		&rate.ID,
		&rate.FromCurrency,
		&rate.ToCurrency,
		&rate.Rate,
		&rate.Active,
		&rate.EffectiveDate,
	)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("query exchange rate %s/%s: %w", from, to, mapError(err))
	}
	return rate, nil
}

func normaliseCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
