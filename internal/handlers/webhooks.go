package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

const (
	webhookEventCaptured = "payment.captured"
	webhookEventFailed   = "payment.failed"
)

// WebhookHandlers consumes verified payment gateway callbacks. Signature
// verification happens in middleware before these handlers run.
type WebhookHandlers struct {
	checkout services.CheckoutService
	logger   func(context.Context, string, map[string]any)
	rejected func(reason string)
}

// WebhookHandlersDeps wires the checkout service and observability hooks.
type WebhookHandlersDeps struct {
	Checkout services.CheckoutService
	Logger   func(context.Context, string, map[string]any)
	Rejected func(reason string)
}

// NewWebhookHandlers constructs handlers for the /webhooks group.
func NewWebhookHandlers(deps WebhookHandlersDeps) *WebhookHandlers {
	h := &WebhookHandlers{
		checkout: deps.Checkout,
		logger:   deps.Logger,
		rejected: deps.Rejected,
	}
	if h.logger == nil {
		h.logger = func(context.Context, string, map[string]any) {}
	}
	if h.rejected == nil {
		h.rejected = func(string) {}
	}
	return h
}

// Routes wires the webhook endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments", h.handlePaymentEvent)
}

type paymentWebhookEvent struct {
	Event          string `json:"event"`
	GatewayOrderID string `json:"gatewayOrderId"`
	ReceiptRef     string `json:"receiptRef,omitempty"`
}

func (h *WebhookHandlers) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	// Gateways attach fields beyond the ones consumed here, so the decode is
	// deliberately lenient about unknown keys.
	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		h.rejected("bad_payload")
		writeBodyError(w, r, err)
		return
	}
	var event paymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.rejected("bad_payload")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed webhook payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(event.GatewayOrderID) == "" {
		h.rejected("bad_payload")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "gatewayOrderId is required", http.StatusBadRequest))
		return
	}

	var handleErr error
	switch event.Event {
	case webhookEventCaptured:
		handleErr = h.checkout.HandlePaymentCaptured(ctx, event.GatewayOrderID, event.ReceiptRef)
	case webhookEventFailed:
		handleErr = h.checkout.HandlePaymentFailed(ctx, event.GatewayOrderID)
	default:
		// Unknown event types are acknowledged so the gateway stops retrying.
		h.logger(ctx, "webhook.ignored", map[string]any{"event": event.Event})
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if handleErr != nil {
		h.writeWebhookError(ctx, w, event, handleErr)
		return
	}

	h.logger(ctx, "webhook.processed", map[string]any{
		"event":            event.Event,
		"gateway_order_id": event.GatewayOrderID,
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *WebhookHandlers) writeWebhookError(ctx context.Context, w http.ResponseWriter, event paymentWebhookEvent, err error) {
	switch {
	case errors.Is(err, services.ErrShipmentNotFound):
		h.rejected("unknown_order")
		httpx.WriteError(ctx, w, httpx.NewError("unknown_order", "no shipment matches the gateway order", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		h.rejected("bad_payload")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		h.logger(ctx, "webhook.failed", map[string]any{
			"event":            event.Event,
			"gateway_order_id": event.GatewayOrderID,
			"error":            err.Error(),
		})
		httpx.WriteError(ctx, w, httpx.NewError("webhook_processing_failed", "failed to process webhook", http.StatusInternalServerError))
	}
}
