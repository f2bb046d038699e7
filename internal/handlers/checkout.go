package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/platform/auth"
	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/services"
)

const maxCheckoutBodySize = 64 * 1024

// CheckoutHandlers exposes the authenticated checkout endpoint.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers for the /checkout group.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes wires the checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAuth())
	r.Post("/", h.createCheckout)
}

type checkoutRequest struct {
	DraftID     string                      `json:"draftId"`
	Quote       domain.ShipmentQuoteRequest `json:"quote"`
	PaymentMode string                      `json:"paymentMode"`
	GatewayKey  string                      `json:"gateway,omitempty"`
}

type checkoutResponse struct {
	ShipmentID     string            `json:"shipmentId"`
	PaymentMode    string            `json:"paymentMode"`
	PaymentStatus  string            `json:"paymentStatus"`
	FinalPrice     int64             `json:"finalPrice"`
	ChargedAmount  int64             `json:"chargedAmount"`
	Currency       string            `json:"currency"`
	Breakdown      checkoutBreakdown `json:"breakdown"`
	GatewayOrderID string            `json:"gatewayOrderId,omitempty"`
	ClientSecret   string            `json:"clientSecret,omitempty"`
}

type checkoutBreakdown struct {
	ItemsTotal     int64 `json:"itemsTotal"`
	AddOnsTotal    int64 `json:"addOnsTotal"`
	CourierCharge  int64 `json:"courierCharge"`
	HandlingCharge int64 `json:"handlingCharge"`
}

func (h *CheckoutHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		UserID:      identity.UID,
		UserEmail:   identity.Email,
		UserName:    identity.Name,
		DraftID:     req.DraftID,
		Quote:       req.Quote,
		PaymentMode: domain.PaymentMode(req.PaymentMode),
		GatewayKey:  req.GatewayKey,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	shipment := result.Shipment
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{
		ShipmentID:    shipment.ID,
		PaymentMode:   string(shipment.PaymentMode),
		PaymentStatus: string(shipment.PaymentStatus),
		FinalPrice:    shipment.FinalPrice,
		ChargedAmount: shipment.ChargedAmount,
		Currency:      shipment.Currency,
		Breakdown: checkoutBreakdown{
			ItemsTotal:     shipment.ItemsTotal,
			AddOnsTotal:    shipment.AddOnsTotal,
			CourierCharge:  shipment.CourierCharge,
			HandlingCharge: shipment.HandlingCharge,
		},
		GatewayOrderID: result.GatewayOrderID,
		ClientSecret:   result.ClientSecret,
	})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnserviceable):
		httpx.WriteError(ctx, w, httpx.NewError("route_unserviceable", "no rate covers the requested route and weight", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutGateway):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_error", "payment gateway rejected the order", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
