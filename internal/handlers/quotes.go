package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/services"
)

const maxQuoteBodySize = 64 * 1024

// QuoteHandlers exposes the shipment pricing endpoints.
type QuoteHandlers struct {
	pricer        services.PricingEngine
	quoted        func(courier string)
	unserviceable func(origin, dest string)
}

// QuoteHandlersDeps wires the pricing engine and optional metric hooks.
type QuoteHandlersDeps struct {
	Pricer        services.PricingEngine
	Quoted        func(courier string)
	Unserviceable func(origin, dest string)
}

// NewQuoteHandlers constructs handlers for the /quotes group.
func NewQuoteHandlers(deps QuoteHandlersDeps) *QuoteHandlers {
	h := &QuoteHandlers{
		pricer:        deps.Pricer,
		quoted:        deps.Quoted,
		unserviceable: deps.Unserviceable,
	}
	if h.quoted == nil {
		h.quoted = func(string) {}
	}
	if h.unserviceable == nil {
		h.unserviceable = func(string, string) {}
	}
	return h
}

// Routes wires the quote endpoints onto the provided router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createQuote)
	r.Get("/couriers", h.listCouriers)
}

func (h *QuoteHandlers) createQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricer == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing engine is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req domain.ShipmentQuoteRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	breakdown, err := h.pricer.Quote(ctx, req)
	if err != nil {
		h.writeQuoteError(ctx, w, err)
		return
	}

	if !breakdown.Transportable {
		h.unserviceable(strings.ToUpper(strings.TrimSpace(req.OriginCountry)), strings.ToUpper(strings.TrimSpace(req.DestinationCountry)))
	} else {
		h.quoted(req.CourierService)
	}

	httpx.WriteJSON(w, http.StatusOK, breakdown)
}

func (h *QuoteHandlers) listCouriers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricer == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing engine is unavailable", http.StatusServiceUnavailable))
		return
	}

	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	dest := strings.TrimSpace(r.URL.Query().Get("destination"))
	if origin == "" || dest == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "origin and destination query parameters are required", http.StatusBadRequest))
		return
	}

	couriers, err := h.pricer.Couriers(ctx, origin, dest)
	if err != nil {
		h.writeQuoteError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"couriers": couriers})
}

func (h *QuoteHandlers) writeQuoteError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing engine is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
