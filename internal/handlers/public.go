package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/repositories"
	"github.com/cargolink/api/internal/services"
)

// PublicHandlers exposes unauthenticated lookup endpoints: receiving
// warehouses and currency conversion.
type PublicHandlers struct {
	warehouses repositories.WarehouseRepository
	currency   services.CurrencyService
}

// NewPublicHandlers constructs handlers for the /public group.
func NewPublicHandlers(warehouses repositories.WarehouseRepository, currency services.CurrencyService) *PublicHandlers {
	return &PublicHandlers{warehouses: warehouses, currency: currency}
}

// Routes wires the public endpoints onto the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/warehouses", h.listWarehouses)
	r.Get("/exchange-rate", h.convertCurrency)
}

type warehousePayload struct {
	ID          string `json:"id"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
	Phone       string `json:"phone,omitempty"`
}

func buildWarehousePayload(w domain.Warehouse) warehousePayload {
	return warehousePayload{
		ID:          w.ID,
		CountryCode: w.CountryCode,
		Name:        w.Name,
		AddressLine: w.AddressLine,
		City:        w.City,
		State:       w.State,
		PostalCode:  w.PostalCode,
		Phone:       w.Phone,
	}
}

func (h *PublicHandlers) listWarehouses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.warehouses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("warehouses_unavailable", "warehouse lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	country := strings.TrimSpace(r.URL.Query().Get("country"))

	var (
		list []domain.Warehouse
		err  error
	)
	if country != "" {
		list, err = h.warehouses.ListByCountry(ctx, country)
	} else {
		list, err = h.warehouses.ListActive(ctx)
	}
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("warehouses_unavailable", "warehouse lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload := make([]warehousePayload, 0, len(list))
	for _, warehouse := range list {
		payload = append(payload, buildWarehousePayload(warehouse))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"warehouses": payload})
}

func (h *PublicHandlers) convertCurrency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.currency == nil {
		httpx.WriteError(ctx, w, httpx.NewError("currency_unavailable", "currency conversion is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))
	amountText := strings.TrimSpace(query.Get("amount"))
	if from == "" || to == "" || amountText == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from, to and amount query parameters are required", http.StatusBadRequest))
		return
	}

	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "amount must be an integer in minor units", http.StatusBadRequest))
		return
	}

	result, err := h.currency.Convert(ctx, amount, from, to)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCurrencyInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("currency_unavailable", "currency conversion is unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}
