package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/email"
	"github.com/cargolink/api/internal/payments"
	"github.com/cargolink/api/internal/repositories"
)

// ErrCheckoutInvalidInput indicates an unusable checkout command.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutUnserviceable indicates no rate rule covers the quoted route.
var ErrCheckoutUnserviceable = errors.New("checkout service: route not serviceable")

// ErrCheckoutGateway indicates the payment gateway rejected the order.
var ErrCheckoutGateway = errors.New("checkout service: gateway error")

// ErrCheckoutUnavailable indicates a backing dependency failed.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// ErrShipmentNotFound indicates no shipment matches the reference.
var ErrShipmentNotFound = errors.New("checkout service: shipment not found")

var (
	errShipmentsRequired      = errors.New("checkout service: shipment repository is required")
	errPricerRequired         = errors.New("checkout service: pricing engine is required")
	errCheckoutClockRequired  = errors.New("checkout service: clock is required")
	errGatewayManagerRequired = errors.New("checkout service: payment manager is required")
)

// PaymentGateway is the slice of the payments manager checkout needs.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, preferred string, req payments.OrderRequest) (payments.GatewayOrder, error)
	LookupPayment(ctx context.Context, preferred, orderID string) (payments.PaymentDetails, error)
}

// CheckoutServiceDeps wires persistence, pricing and the payment gateway.
type CheckoutServiceDeps struct {
	Shipments         repositories.ShipmentRepository
	Drafts            repositories.DraftRepository
	Pricer            PricingEngine
	Gateway           PaymentGateway
	Email             email.Sender
	Clock             func() time.Time
	IDGenerator       func() string
	Logger            func(context.Context, string, map[string]any)
	OnlineSurchargeBP int64
	PaymentInitiated  func(mode string) // metrics hook
}

type checkoutService struct {
	shipments   repositories.ShipmentRepository
	drafts      repositories.DraftRepository
	pricer      PricingEngine
	gateway     PaymentGateway
	email       email.Sender
	now         func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
	surchargeBP int64
	initiated   func(mode string)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Shipments == nil {
		return nil, errShipmentsRequired
	}
	if deps.Pricer == nil {
		return nil, errPricerRequired
	}
	if deps.Gateway == nil {
		return nil, errGatewayManagerRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	initiated := deps.PaymentInitiated
	if initiated == nil {
		initiated = func(string) {}
	}

	return &checkoutService{
		shipments:   deps.Shipments,
		drafts:      deps.Drafts,
		pricer:      deps.Pricer,
		gateway:     deps.Gateway,
		email:       deps.Email,
		now:         deps.Clock,
		newID:       newID,
		logger:      logger,
		surchargeBP: deps.OnlineSurchargeBP,
		initiated:   initiated,
	}, nil
}

// Checkout prices the quote, persists a shipment, and for online payments
// opens a gateway order for the surcharge-inclusive amount. The displayed
// final price and the charged amount are stored as separate fields.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return CheckoutResult{}, fmt.Errorf("%w: user is required", ErrCheckoutInvalidInput)
	}
	switch cmd.PaymentMode {
	case domain.PaymentModeOnline, domain.PaymentModeBankTransfer:
	default:
		return CheckoutResult{}, fmt.Errorf("%w: unknown payment mode %q", ErrCheckoutInvalidInput, cmd.PaymentMode)
	}

	breakdown, err := s.pricer.Quote(ctx, cmd.Quote)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	if !breakdown.Transportable {
		return CheckoutResult{}, ErrCheckoutUnserviceable
	}

	now := s.now().UTC()
	shipment := domain.Shipment{
		ID:                     s.newID(),
		UserID:                 cmd.UserID,
		CustomerEmail:          strings.TrimSpace(cmd.UserEmail),
		CustomerName:           strings.TrimSpace(cmd.UserName),
		DraftID:                cmd.DraftID,
		OriginCountry:          strings.ToUpper(strings.TrimSpace(cmd.Quote.OriginCountry)),
		DestCountry:            strings.ToUpper(strings.TrimSpace(cmd.Quote.DestinationCountry)),
		CourierService:         cmd.Quote.CourierService,
		WeightGrams:            cmd.Quote.WeightGrams,
		LengthCm:               cmd.Quote.LengthCm,
		WidthCm:                cmd.Quote.WidthCm,
		HeightCm:               cmd.Quote.HeightCm,
		ItemsTotal:             breakdown.ItemsTotal,
		AddOnsTotal:            breakdown.AddOnsTotal,
		CourierCharge:          breakdown.CourierCharge,
		HandlingCharge:         breakdown.HandlingCharge,
		FinalPrice:             breakdown.FinalPrice,
		ChargedAmount:          breakdown.FinalPrice,
		Currency:               breakdown.Currency,
		PaymentMode:            cmd.PaymentMode,
		PaymentStatus:          domain.PaymentStatusPending,
		CourierChargeOverride:  cmd.Quote.CourierChargeOverride,
		HandlingChargeOverride: cmd.Quote.HandlingChargeOverride,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	result := CheckoutResult{}
	if cmd.PaymentMode == domain.PaymentModeOnline {
		shipment.ChargedAmount = applySurcharge(breakdown.FinalPrice, s.surchargeBP)

		order, err := s.gateway.CreateOrder(ctx, cmd.GatewayKey, payments.OrderRequest{
			Amount:        shipment.ChargedAmount,
			Currency:      shipment.Currency,
			CustomerEmail: cmd.UserEmail,
			Description:   fmt.Sprintf("Shipment %s %s -> %s", shipment.ID, shipment.OriginCountry, shipment.DestCountry),
			Metadata: map[string]string{
				"shipment_id": shipment.ID,
				"draft_id":    shipment.DraftID,
			},
			IdempotencyKey: shipment.ID,
		})
		if err != nil {
			return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutGateway, err)
		}
		shipment.GatewayOrderID = order.ID
		result.GatewayOrderID = order.ID
		result.ClientSecret = order.ClientSecret
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		// The gateway order already exists at this point; record its id so
		// the orphan can be reconciled or refunded by hand.
		if shipment.GatewayOrderID != "" {
			s.logger(ctx, "checkout.orphaned_gateway_order", map[string]any{
				"shipment_id":      shipment.ID,
				"gateway_order_id": shipment.GatewayOrderID,
				"error":            err.Error(),
			})
		}
		return CheckoutResult{}, fmt.Errorf("%w: persist shipment: %v", ErrCheckoutUnavailable, err)
	}

	s.initiated(string(cmd.PaymentMode))
	s.logger(ctx, "checkout.created", map[string]any{
		"shipment_id":    shipment.ID,
		"payment_mode":   string(cmd.PaymentMode),
		"final_price":    shipment.FinalPrice,
		"charged_amount": shipment.ChargedAmount,
		"currency":       shipment.Currency,
	})

	result.Shipment = shipment
	return result, nil
}

// HandlePaymentCaptured marks the shipment paid, sends the confirmation
// email, and removes the originating draft. Email and draft cleanup are best
// effort: the capture itself must never be lost to a side-effect failure.
func (s *checkoutService) HandlePaymentCaptured(ctx context.Context, gatewayOrderID, receiptRef string) error {
	shipment, err := s.findByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return err
	}

	if receiptRef == "" {
		receiptRef = s.resolveReceiptRef(ctx, shipment)
	}
	if err := s.shipments.UpdatePaymentStatus(ctx, shipment.ID, domain.PaymentStatusCaptured, receiptRef, s.now().UTC()); err != nil {
		return fmt.Errorf("%w: mark captured: %v", ErrCheckoutUnavailable, err)
	}

	if s.drafts != nil && shipment.DraftID != "" {
		if err := s.drafts.Delete(ctx, shipment.UserID, shipment.DraftID); err != nil && !repositories.IsNotFound(err) {
			s.logger(ctx, "checkout.draft_cleanup_failed", map[string]any{
				"shipment_id": shipment.ID,
				"draft_id":    shipment.DraftID,
				"error":       err.Error(),
			})
		}
	}

	s.sendCaptureEmail(ctx, shipment, receiptRef)
	return nil
}

// HandlePaymentFailed marks the shipment's payment as failed.
func (s *checkoutService) HandlePaymentFailed(ctx context.Context, gatewayOrderID string) error {
	shipment, err := s.findByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	if err := s.shipments.UpdatePaymentStatus(ctx, shipment.ID, domain.PaymentStatusFailed, "", s.now().UTC()); err != nil {
		return fmt.Errorf("%w: mark failed: %v", ErrCheckoutUnavailable, err)
	}
	s.logger(ctx, "checkout.payment_failed", map[string]any{"shipment_id": shipment.ID})
	return nil
}

// resolveReceiptRef cross-checks the capture with the gateway when the
// webhook carries no receipt reference. A failed lookup falls back to a
// generated reference rather than losing the capture.
func (s *checkoutService) resolveReceiptRef(ctx context.Context, shipment domain.Shipment) string {
	if shipment.GatewayOrderID != "" {
		details, err := s.gateway.LookupPayment(ctx, "", shipment.GatewayOrderID)
		switch {
		case err != nil:
			s.logger(ctx, "checkout.receipt_lookup_failed", map[string]any{
				"shipment_id":      shipment.ID,
				"gateway_order_id": shipment.GatewayOrderID,
				"error":            err.Error(),
			})
		case strings.TrimSpace(details.ReceiptRef) != "":
			return details.ReceiptRef
		}
	}
	return s.newID()
}

func (s *checkoutService) findByGatewayOrder(ctx context.Context, gatewayOrderID string) (domain.Shipment, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return domain.Shipment{}, fmt.Errorf("%w: gateway order id is required", ErrCheckoutInvalidInput)
	}
	shipment, err := s.shipments.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Shipment{}, ErrShipmentNotFound
		}
		return domain.Shipment{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	return shipment, nil
}

func (s *checkoutService) sendCaptureEmail(ctx context.Context, shipment domain.Shipment, receiptRef string) {
	if s.email == nil || strings.TrimSpace(shipment.CustomerEmail) == "" {
		return
	}
	greeting := "Hello"
	if name := strings.TrimSpace(shipment.CustomerName); name != "" {
		greeting = "Hello " + name
	}
	msg := email.Message{
		To:            shipment.CustomerEmail,
		RecipientName: strings.TrimSpace(shipment.CustomerName),
		Subject:       "Payment received for your shipment",
		TextBody: fmt.Sprintf(
			"%s,\n\nWe received your payment of %d %s for shipment %s (receipt %s). We'll email you when it is dispatched.",
			greeting, shipment.ChargedAmount, shipment.Currency, shipment.ID, receiptRef,
		),
		HTMLBody: fmt.Sprintf(
			"<p>%s,</p><p>We received your payment of <strong>%d&nbsp;%s</strong> for shipment %s (receipt %s).</p><p>We'll email you when it is dispatched.</p>",
			html.EscapeString(greeting), shipment.ChargedAmount, shipment.Currency, shipment.ID, receiptRef,
		),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger(ctx, "checkout.email_failed", map[string]any{
			"shipment_id": shipment.ID,
			"error":       err.Error(),
		})
	}
}

// applySurcharge adds the basis-point surcharge, rounded half-up to the
// nearest minor unit.
func applySurcharge(amount, bp int64) int64 {
	if bp <= 0 || amount <= 0 {
		return amount
	}
	surcharge := (amount*bp + 5000) / 10000
	return amount + surcharge
}
