package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/email"
	"github.com/cargolink/api/internal/payments"
	"github.com/cargolink/api/internal/repositories"
)

type stubShipmentRepo struct {
	created   []domain.Shipment
	byGateway map[string]domain.Shipment
	updates   []struct {
		ID         string
		Status     domain.PaymentStatus
		ReceiptRef string
	}
	createErr error
	updateErr error
}

func newStubShipmentRepo() *stubShipmentRepo {
	return &stubShipmentRepo{byGateway: map[string]domain.Shipment{}}
}

func (s *stubShipmentRepo) Create(_ context.Context, shipment domain.Shipment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, shipment)
	if shipment.GatewayOrderID != "" {
		s.byGateway[shipment.GatewayOrderID] = shipment
	}
	return nil
}

func (s *stubShipmentRepo) FindByID(_ context.Context, id string) (domain.Shipment, error) {
	for _, shipment := range s.created {
		if shipment.ID == id {
			return shipment, nil
		}
	}
	return domain.Shipment{}, repositories.ErrNotFound
}

func (s *stubShipmentRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (domain.Shipment, error) {
	if shipment, ok := s.byGateway[gatewayOrderID]; ok {
		return shipment, nil
	}
	return domain.Shipment{}, repositories.ErrNotFound
}

func (s *stubShipmentRepo) UpdatePaymentStatus(_ context.Context, id string, status domain.PaymentStatus, receiptRef string, _ time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, struct {
		ID         string
		Status     domain.PaymentStatus
		ReceiptRef string
	}{id, status, receiptRef})
	return nil
}

type stubGateway struct {
	order     payments.GatewayOrder
	err       error
	calls     []payments.OrderRequest
	details   payments.PaymentDetails
	lookupErr error
	lookups   []string
}

func (s *stubGateway) CreateOrder(_ context.Context, _ string, req payments.OrderRequest) (payments.GatewayOrder, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return payments.GatewayOrder{}, s.err
	}
	return s.order, nil
}

func (s *stubGateway) LookupPayment(_ context.Context, _ string, orderID string) (payments.PaymentDetails, error) {
	s.lookups = append(s.lookups, orderID)
	if s.lookupErr != nil {
		return payments.PaymentDetails{}, s.lookupErr
	}
	return s.details, nil
}

type stubPricer struct {
	breakdown domain.PriceBreakdown
	err       error
}

func (s *stubPricer) Quote(context.Context, domain.ShipmentQuoteRequest) (domain.PriceBreakdown, error) {
	if s.err != nil {
		return domain.PriceBreakdown{}, s.err
	}
	return s.breakdown, nil
}

func (s *stubPricer) Couriers(context.Context, string, string) ([]string, error) {
	return nil, nil
}

type stubEmailSender struct {
	sent []email.Message
	err  error
}

func (s *stubEmailSender) Name() string { return "stub" }

func (s *stubEmailSender) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func transportableBreakdown() domain.PriceBreakdown {
	return domain.PriceBreakdown{
		Transportable:       true,
		SelectedRate:        &domain.RateRule{ID: "rr-1", BasePrice: 120000, Currency: "INR"},
		BillableWeightGrams: 600,
		ItemsTotal:          850000,
		AddOnsTotal:         10000,
		CourierCharge:       17000,
		HandlingCharge:      8500,
		FinalPrice:          1005500,
		Currency:            "INR",
		TransitTime:         "4-6 days",
	}
}

func quoteRequest() domain.ShipmentQuoteRequest {
	return domain.ShipmentQuoteRequest{
		OriginCountry:      "jp",
		DestinationCountry: "in",
		CourierService:     "express",
		WeightGrams:        400,
	}
}

func newTestCheckout(t *testing.T, shipments *stubShipmentRepo, gateway *stubGateway, sender email.Sender) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Shipments:         shipments,
		Pricer:            &stubPricer{breakdown: transportableBreakdown()},
		Gateway:           gateway,
		Email:             sender,
		Clock:             fixedClock,
		IDGenerator:       func() string { return "shp-test" },
		OnlineSurchargeBP: 350,
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func TestCheckoutOnlineAppliesSurcharge(t *testing.T) {
	shipments := newStubShipmentRepo()
	gateway := &stubGateway{order: payments.GatewayOrder{ID: "gw_1", ClientSecret: "cs_1"}}
	svc := newTestCheckout(t, shipments, gateway, nil)

	result, err := svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		UserEmail:   "user@example.com",
		DraftID:     "draft-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeOnline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shipment := result.Shipment
	if shipment.FinalPrice != 1005500 {
		t.Fatalf("expected displayed price unchanged, got %d", shipment.FinalPrice)
	}
	// 350bp of 1005500 = 35192.5, rounded half-up to 35193.
	if shipment.ChargedAmount != 1005500+35193 {
		t.Fatalf("expected surcharged amount 1040693, got %d", shipment.ChargedAmount)
	}
	if shipment.GatewayOrderID != "gw_1" || result.ClientSecret != "cs_1" {
		t.Fatalf("expected gateway handle on result, got %+v", result)
	}
	if len(gateway.calls) != 1 || gateway.calls[0].Amount != shipment.ChargedAmount {
		t.Fatalf("expected gateway order for charged amount, got %+v", gateway.calls)
	}
	if len(shipments.created) != 1 {
		t.Fatalf("expected shipment persisted")
	}
	if shipments.created[0].PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", shipments.created[0].PaymentStatus)
	}
}

func TestCheckoutSurchargeRoundsHalfUp(t *testing.T) {
	// 3.5% of 1000 = 35 exactly: charged 1035, displayed 1000.
	if got := applySurcharge(1000, 350); got != 1035 {
		t.Fatalf("expected 1035, got %d", got)
	}
	// 350bp of 10 = 0.35, rounds down to 0.
	if got := applySurcharge(10, 350); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	// 350bp of 15 = 0.525, rounds up to 1.
	if got := applySurcharge(15, 350); got != 16 {
		t.Fatalf("expected 16, got %d", got)
	}
	if got := applySurcharge(1000, 0); got != 1000 {
		t.Fatalf("expected zero surcharge passthrough, got %d", got)
	}
}

func TestCheckoutBankTransferSkipsGateway(t *testing.T) {
	shipments := newStubShipmentRepo()
	gateway := &stubGateway{}
	svc := newTestCheckout(t, shipments, gateway, nil)

	result, err := svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeBankTransfer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatal("expected no gateway call for bank transfer")
	}
	if result.Shipment.ChargedAmount != result.Shipment.FinalPrice {
		t.Fatalf("expected no surcharge offline, got %d vs %d", result.Shipment.ChargedAmount, result.Shipment.FinalPrice)
	}
}

func TestCheckoutUnserviceableRoute(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Shipments: newStubShipmentRepo(),
		Pricer:    &stubPricer{breakdown: domain.PriceBreakdown{Transportable: false}},
		Gateway:   &stubGateway{},
		Clock:     fixedClock,
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	_, err = svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeOnline,
	})
	if !errors.Is(err, ErrCheckoutUnserviceable) {
		t.Fatalf("expected unserviceable error, got %v", err)
	}
}

func TestCheckoutGatewayFailurePropagates(t *testing.T) {
	shipments := newStubShipmentRepo()
	gateway := &stubGateway{err: errors.New("card network unreachable")}
	svc := newTestCheckout(t, shipments, gateway, nil)

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeOnline,
	})
	if !errors.Is(err, ErrCheckoutGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(shipments.created) != 0 {
		t.Fatal("expected no shipment persisted after gateway failure")
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc := newTestCheckout(t, newStubShipmentRepo(), &stubGateway{}, nil)

	if _, err := svc.Checkout(context.Background(), CheckoutCommand{Quote: quoteRequest(), PaymentMode: domain.PaymentModeOnline}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input without user, got %v", err)
	}
	if _, err := svc.Checkout(context.Background(), CheckoutCommand{UserID: "u", Quote: quoteRequest(), PaymentMode: "cash"}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for unknown mode, got %v", err)
	}
}

func TestHandlePaymentCaptured(t *testing.T) {
	shipments := newStubShipmentRepo()
	gateway := &stubGateway{order: payments.GatewayOrder{ID: "gw_1"}}
	sender := &stubEmailSender{}
	remote := newStubRemoteRepo()
	remote.byUser["user-1"] = map[string]domain.OrderDraft{"draft-1": validLocalDraft("draft-1")}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Shipments:         shipments,
		Drafts:            remote,
		Pricer:            &stubPricer{breakdown: transportableBreakdown()},
		Gateway:           gateway,
		Email:             sender,
		Clock:             fixedClock,
		IDGenerator:       func() string { return "shp-test" },
		OnlineSurchargeBP: 350,
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	_, err = svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		UserEmail:   "user@example.com",
		UserName:    "Asha Rao",
		DraftID:     "draft-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeOnline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.HandlePaymentCaptured(context.Background(), "gw_1", "rcpt_7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(shipments.updates) != 1 {
		t.Fatalf("expected one status update, got %d", len(shipments.updates))
	}
	update := shipments.updates[0]
	if update.Status != domain.PaymentStatusCaptured || update.ReceiptRef != "rcpt_7" {
		t.Fatalf("unexpected update %+v", update)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "user@example.com" {
		t.Fatalf("expected confirmation email, got %+v", sender.sent)
	}
	msg := sender.sent[0]
	if msg.RecipientName != "Asha Rao" {
		t.Fatalf("expected recipient name on message, got %q", msg.RecipientName)
	}
	if !strings.Contains(msg.HTMLBody, "Asha Rao") || !strings.Contains(msg.HTMLBody, "rcpt_7") {
		t.Fatalf("expected HTML confirmation with name and receipt, got %q", msg.HTMLBody)
	}
	if _, ok := remote.byUser["user-1"]["draft-1"]; ok {
		t.Fatal("expected originating draft removed")
	}
}

func TestHandlePaymentCapturedFetchesReceiptFromGateway(t *testing.T) {
	shipments := newStubShipmentRepo()
	shipments.byGateway["gw_1"] = domain.Shipment{ID: "shp-1", UserID: "user-1", GatewayOrderID: "gw_1"}
	gateway := &stubGateway{details: payments.PaymentDetails{OrderID: "gw_1", ReceiptRef: "rcpt_gw", Status: payments.StatusSucceeded}}
	svc := newTestCheckout(t, shipments, gateway, nil)

	if err := svc.HandlePaymentCaptured(context.Background(), "gw_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gateway.lookups) != 1 || gateway.lookups[0] != "gw_1" {
		t.Fatalf("expected one gateway lookup for gw_1, got %v", gateway.lookups)
	}
	if len(shipments.updates) != 1 || shipments.updates[0].ReceiptRef != "rcpt_gw" {
		t.Fatalf("expected gateway receipt recorded, got %+v", shipments.updates)
	}
}

func TestHandlePaymentCapturedLookupFailureFallsBack(t *testing.T) {
	shipments := newStubShipmentRepo()
	shipments.byGateway["gw_1"] = domain.Shipment{ID: "shp-1", UserID: "user-1", GatewayOrderID: "gw_1"}
	gateway := &stubGateway{lookupErr: errors.New("gateway timeout")}
	svc := newTestCheckout(t, shipments, gateway, nil)

	if err := svc.HandlePaymentCaptured(context.Background(), "gw_1", ""); err != nil {
		t.Fatalf("lookup failure must not fail the capture: %v", err)
	}
	if len(shipments.updates) != 1 || shipments.updates[0].ReceiptRef != "shp-test" {
		t.Fatalf("expected generated receipt fallback, got %+v", shipments.updates)
	}
}

func TestCheckoutPersistFailureLogsOrphanedOrder(t *testing.T) {
	shipments := newStubShipmentRepo()
	shipments.createErr = errors.New("db down")
	gateway := &stubGateway{order: payments.GatewayOrder{ID: "gw_9"}}

	var orphaned string
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Shipments:         shipments,
		Pricer:            &stubPricer{breakdown: transportableBreakdown()},
		Gateway:           gateway,
		Clock:             fixedClock,
		OnlineSurchargeBP: 350,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			if event == "checkout.orphaned_gateway_order" {
				orphaned, _ = fields["gateway_order_id"].(string)
			}
		},
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	_, err = svc.Checkout(context.Background(), CheckoutCommand{
		UserID:      "user-1",
		Quote:       quoteRequest(),
		PaymentMode: domain.PaymentModeOnline,
	})
	if !errors.Is(err, ErrCheckoutUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if orphaned != "gw_9" {
		t.Fatalf("expected orphaned gateway order logged, got %q", orphaned)
	}
}

func TestHandlePaymentCapturedEmailFailureIsSoft(t *testing.T) {
	shipments := newStubShipmentRepo()
	shipments.byGateway["gw_1"] = domain.Shipment{ID: "shp-1", UserID: "user-1", CustomerEmail: "user@example.com", GatewayOrderID: "gw_1"}
	sender := &stubEmailSender{err: errors.New("smtp down")}
	svc := newTestCheckout(t, shipments, &stubGateway{}, sender)

	if err := svc.HandlePaymentCaptured(context.Background(), "gw_1", "rcpt_1"); err != nil {
		t.Fatalf("email failure must not fail the capture: %v", err)
	}
}

func TestHandlePaymentFailed(t *testing.T) {
	shipments := newStubShipmentRepo()
	shipments.byGateway["gw_1"] = domain.Shipment{ID: "shp-1", GatewayOrderID: "gw_1"}
	svc := newTestCheckout(t, shipments, &stubGateway{}, nil)

	if err := svc.HandlePaymentFailed(context.Background(), "gw_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shipments.updates) != 1 || shipments.updates[0].Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed status update, got %+v", shipments.updates)
	}
}

func TestHandlePaymentUnknownOrder(t *testing.T) {
	svc := newTestCheckout(t, newStubShipmentRepo(), &stubGateway{}, nil)

	if err := svc.HandlePaymentCaptured(context.Background(), "gw_missing", ""); !errors.Is(err, ErrShipmentNotFound) {
		t.Fatalf("expected shipment not found, got %v", err)
	}
}
