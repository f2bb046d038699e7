package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargolink/api/internal/repositories"
)

// DBTX abstracts the pgx pool so repositories accept either a live
// *pgxpool.Pool or a pgxmock pool in tests.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ DBTX = (*pgxpool.Pool)(nil)

const uniqueViolationCode = "23505"

// mapError converts pgx-level failures to the repository sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return repositories.ErrConflict
	}
	return err
}

// HealthRepository pings the relational store for readiness checks.
type HealthRepository struct {
	pool DBTX
}

// NewHealthRepository creates a readiness probe over the pool.
func NewHealthRepository(pool DBTX) *HealthRepository {
	return &HealthRepository{pool: pool}
}

// Ping verifies the database connection.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
