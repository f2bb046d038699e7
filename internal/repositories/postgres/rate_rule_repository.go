package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargolink/api/internal/domain"
)

// RateRuleRepository implements repositories.RateRuleRepository using PostgreSQL.
type RateRuleRepository struct {
	pool DBTX
}

// NewRateRuleRepository creates a new PostgreSQL-backed rate rule repository.
func NewRateRuleRepository(pool DBTX) *RateRuleRepository {
	return &RateRuleRepository{pool: pool}
}

// ListForRoute returns every rule priced for the origin/destination pair in
// table order. Country codes are matched case-insensitively.
func (r *RateRuleRepository) ListForRoute(ctx context.Context, origin, dest string) ([]domain.RateRule, error) {
	query := `
		SELECT id, origin_country, dest_country, courier_service,
			min_weight_grams, max_weight_grams, base_price, currency,
			transit_time, position
		FROM rate_rules
		WHERE UPPER(origin_country) = $1 AND UPPER(dest_country) = $2
		ORDER BY position, min_weight_grams`

	rows, err := r.pool.Query(ctx, query, normaliseCountry(origin), normaliseCountry(dest))
	if err != nil {
		return nil, fmt.Errorf("query rate rules: %w", mapError(err))
	}
	defer rows.Close()

	var rules []domain.RateRule
	for rows.Next() {
		var rule domain.RateRule
		if err := rows.Scan(
			&rule.ID,
			&rule.OriginCountry,
			&rule.DestCountry,
			&rule.CourierService,
			&rule.MinWeightGrams,
			&rule.MaxWeightGrams,
			&rule.BasePrice,
			&rule.Currency,
			&rule.TransitTime,
			&rule.Position,
		); err != nil {
			return nil, fmt.Errorf("scan rate rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate rules: %w", err)
	}
	return rules, nil
}

// ListCouriers returns the distinct courier services priced for the route.
func (r *RateRuleRepository) ListCouriers(ctx context.Context, origin, dest string) ([]string, error) {
	query := `
		SELECT DISTINCT courier_service
		FROM rate_rules
		WHERE UPPER(origin_country) = $1 AND UPPER(dest_country) = $2
		ORDER BY courier_service`

	rows, err := r.pool.Query(ctx, query, normaliseCountry(origin), normaliseCountry(dest))
	if err != nil {
		return nil, fmt.Errorf("query couriers: %w", mapError(err))
	}
	defer rows.Close()

	var couriers []string
	for rows.Next() {
		var courier string
		if err := rows.Scan(&courier); err != nil {
			return nil, fmt.Errorf("scan courier: %w", err)
		}
		couriers = append(couriers, courier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate couriers: %w", err)
	}
	return couriers, nil
}

func normaliseCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
