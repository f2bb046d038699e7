package postgres

import (
	"context"
	"fmt"

	"github.com/cargolink/api/internal/domain"
)

// WarehouseRepository implements repositories.WarehouseRepository using PostgreSQL.
type WarehouseRepository struct {
	pool DBTX
}

// NewWarehouseRepository creates a new PostgreSQL-backed warehouse repository.
func NewWarehouseRepository(pool DBTX) *WarehouseRepository {
	return &WarehouseRepository{pool: pool}
}

const warehouseColumns = `id, country_code, name, address_line, city, state, postal_code, phone, active`

// ListActive returns every active receiving warehouse.
func (r *WarehouseRepository) ListActive(ctx context.Context) ([]domain.Warehouse, error) {
	query := `
		SELECT ` + warehouseColumns + `
		FROM warehouses
		WHERE active
		ORDER BY country_code, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query warehouses: %w", mapError(err))
	}
	defer rows.Close()
	return scanWarehouses(rows)
}

// ListByCountry returns active warehouses in the given source country.
func (r *WarehouseRepository) ListByCountry(ctx context.Context, countryCode string) ([]domain.Warehouse, error) {
	query := `
		SELECT ` + warehouseColumns + `
		FROM warehouses
		WHERE active AND UPPER(country_code) = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, normaliseCountry(countryCode))
	if err != nil {
		return nil, fmt.Errorf("query warehouses by country: %w", mapError(err))
	}
	defer rows.Close()
	return scanWarehouses(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanWarehouses(rows rowScanner) ([]domain.Warehouse, error) {
	var warehouses []domain.Warehouse
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(
			&w.ID,
			&w.CountryCode,
			&w.Name,
			&w.AddressLine,
			&w.City,
			&w.State,
			&w.PostalCode,
			&w.Phone,
			&w.Active,
		); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warehouses: %w", err)
	}
	return warehouses, nil
}
