package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/platform/auth"
	"github.com/cargolink/api/internal/services"
)

type stubCheckoutService struct {
	result services.CheckoutResult
	err    error

	lastCmd      services.CheckoutCommand
	capturedID   string
	capturedRef  string
	failedID     string
	handledError error
}

func (s *stubCheckoutService) Checkout(_ context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	s.lastCmd = cmd
	return s.result, s.err
}

func (s *stubCheckoutService) HandlePaymentCaptured(_ context.Context, gatewayOrderID, receiptRef string) error {
	s.capturedID = gatewayOrderID
	s.capturedRef = receiptRef
	return s.handledError
}

func (s *stubCheckoutService) HandlePaymentFailed(_ context.Context, gatewayOrderID string) error {
	s.failedID = gatewayOrderID
	return s.handledError
}

var _ services.CheckoutService = (*stubCheckoutService)(nil)

const checkoutBody = `{
	"draftId": "draft-1",
	"quote": {
		"originCountry": "JP",
		"destinationCountry": "IN",
		"courierService": "express",
		"weightGrams": 400,
		"declaredItems": [{"declaredValue": {"amount": 425000, "currency": "INR"}, "quantity": 2}]
	},
	"paymentMode": "online"
}`

func newCheckoutRouter(svc services.CheckoutService, identity *auth.Identity) http.Handler {
	opts := []Option{WithCheckoutRoutes(NewCheckoutHandlers(svc).Routes)}
	if identity != nil {
		opts = append(opts, WithMiddlewares(identityInjector(identity)))
	}
	return NewRouter(opts...)
}

func TestCheckoutHandlersCreate(t *testing.T) {
	svc := &stubCheckoutService{
		result: services.CheckoutResult{
			Shipment: domain.Shipment{
				ID:            "shp-1",
				PaymentMode:   domain.PaymentModeOnline,
				PaymentStatus: domain.PaymentStatusPending,
				FinalPrice:    1005500,
				ChargedAmount: 1040693,
				Currency:      "INR",
				ItemsTotal:    850000,
			},
			GatewayOrderID: "gw_1",
			ClientSecret:   "secret_1",
		},
	}
	router := newCheckoutRouter(svc, &auth.Identity{UID: "user-1", Email: "u@example.com", Name: "U Example"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.UserID != "user-1" || svc.lastCmd.UserEmail != "u@example.com" || svc.lastCmd.UserName != "U Example" {
		t.Fatalf("expected identity forwarded, got %+v", svc.lastCmd)
	}
	if svc.lastCmd.PaymentMode != domain.PaymentModeOnline {
		t.Fatalf("expected online mode, got %q", svc.lastCmd.PaymentMode)
	}

	var body checkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.ShipmentID != "shp-1" || body.GatewayOrderID != "gw_1" || body.ClientSecret != "secret_1" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.FinalPrice != 1005500 || body.ChargedAmount != 1040693 {
		t.Fatalf("expected both totals in response, got %+v", body)
	}
}

func TestCheckoutHandlersRequiresAuth(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCheckoutHandlersUnserviceable(t *testing.T) {
	svc := &stubCheckoutService{err: services.ErrCheckoutUnserviceable}
	router := newCheckoutRouter(svc, &auth.Identity{UID: "user-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestCheckoutHandlersGatewayFailure(t *testing.T) {
	svc := &stubCheckoutService{err: services.ErrCheckoutGateway}
	router := newCheckoutRouter(svc, &auth.Identity{UID: "user-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}
