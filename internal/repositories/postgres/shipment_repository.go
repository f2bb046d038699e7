package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

// ShipmentRepository implements repositories.ShipmentRepository using PostgreSQL.
type ShipmentRepository struct {
	pool DBTX
}

// NewShipmentRepository creates a new PostgreSQL-backed shipment repository.
func NewShipmentRepository(pool DBTX) *ShipmentRepository {
	return &ShipmentRepository{pool: pool}
}

const shipmentColumns = `
	id, user_id, customer_email, customer_name, draft_id, origin_country, dest_country, courier_service,
	weight_grams, length_cm, width_cm, height_cm,
	items_total, addons_total, courier_charge, handling_charge,
	final_price, charged_amount, currency,
	payment_mode, payment_status, gateway_order_id, receipt_ref,
	courier_charge_override, handling_charge_override,
	created_at, updated_at`

// Create inserts a new shipment.
func (r *ShipmentRepository) Create(ctx context.Context, s domain.Shipment) error {
	query := `
		INSERT INTO shipments (` + shipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27)`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.CustomerEmail,
		s.CustomerName,
		s.DraftID,
		s.OriginCountry,
		s.DestCountry,
		s.CourierService,
		s.WeightGrams,
		s.LengthCm,
		s.WidthCm,
		s.HeightCm,
		s.ItemsTotal,
		s.AddOnsTotal,
		s.CourierCharge,
		s.HandlingCharge,
		s.FinalPrice,
		s.ChargedAmount,
		s.Currency,
		string(s.PaymentMode),
		string(s.PaymentStatus),
		s.GatewayOrderID,
		s.ReceiptRef,
		s.CourierChargeOverride,
		s.HandlingChargeOverride,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", mapError(err))
	}
	return nil
}

// FindByID retrieves a shipment by its ID.
func (r *ShipmentRepository) FindByID(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`
	return r.scanOne(ctx, query, shipmentID)
}

// FindByGatewayOrderID retrieves a shipment by the gateway order reference the
// webhook carries.
func (r *ShipmentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE gateway_order_id = $1`
	return r.scanOne(ctx, query, gatewayOrderID)
}

// UpdatePaymentStatus transitions the payment state and records the gateway
// receipt reference.
func (r *ShipmentRepository) UpdatePaymentStatus(ctx context.Context, shipmentID string, status domain.PaymentStatus, receiptRef string, at time.Time) error {
	query := `
		UPDATE shipments
		SET payment_status = $2, receipt_ref = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, shipmentID, string(status), receiptRef, at)
	if err != nil {
		return fmt.Errorf("update payment status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update payment status %s: %w", shipmentID, repositories.ErrNotFound)
	}
	return nil
}

func (r *ShipmentRepository) scanOne(ctx context.Context, query string, arg any) (domain.Shipment, error) {
	var (
		s            domain.Shipment
		mode, status string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID,
		&s.UserID,
		&s.CustomerEmail,
		&s.CustomerName,
		&s.DraftID,
		&s.OriginCountry,
		&s.DestCountry,
		&s.CourierService,
		&s.WeightGrams,
		&s.LengthCm,
		&s.WidthCm,
		&s.HeightCm,
		&s.ItemsTotal,
		&s.AddOnsTotal,
		&s.CourierCharge,
		&s.HandlingCharge,
		&s.FinalPrice,
		&s.ChargedAmount,
		&s.Currency,
		&mode,
		&status,
		&s.GatewayOrderID,
		&s.ReceiptRef,
		&s.CourierChargeOverride,
		&s.HandlingChargeOverride,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("scan shipment: %w", mapError(err))
	}
	s.PaymentMode = domain.PaymentMode(mode)
	s.PaymentStatus = domain.PaymentStatus(status)
	return s, nil
}
