package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/platform/auth"
	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/services"
)

const maxDraftBodySize = 256 * 1024

// DraftHandlers exposes the order-draft endpoints. Anonymous callers are
// scoped by the device header; authenticated callers additionally reach the
// remote store and may sync.
type DraftHandlers struct {
	drafts services.DraftService
}

// NewDraftHandlers constructs handlers for the /drafts group.
func NewDraftHandlers(drafts services.DraftService) *DraftHandlers {
	return &DraftHandlers{drafts: drafts}
}

// Routes wires the draft endpoints onto the provided router.
func (h *DraftHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listDrafts)
	r.Post("/", h.saveDraft)
	r.With(auth.RequireAuth()).Post("/sync", h.syncDrafts)
	r.Get("/{draftID}", h.getDraft)
	r.Put("/{draftID}", h.updateDraft)
	r.Delete("/{draftID}", h.deleteDraft)
}

func (h *DraftHandlers) scopeFromRequest(w http.ResponseWriter, r *http.Request) (services.DraftScope, bool) {
	scope := services.DraftScope{DeviceID: auth.DeviceIDFromRequest(r)}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil {
		scope.UserID = identity.UID
	}
	if scope.UserID == "" && scope.DeviceID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "a device id header or authentication is required", http.StatusBadRequest))
		return services.DraftScope{}, false
	}
	return scope, true
}

func (h *DraftHandlers) listDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
		return
	}
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	drafts, err := h.drafts.List(ctx, scope)
	if err != nil {
		h.writeDraftError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (h *DraftHandlers) getDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
		return
	}
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	draft, err := h.drafts.Get(ctx, scope, chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeDraftError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, draft)
}

func (h *DraftHandlers) saveDraft(w http.ResponseWriter, r *http.Request) {
	h.persistDraft(w, r, "")
}

func (h *DraftHandlers) updateDraft(w http.ResponseWriter, r *http.Request) {
	h.persistDraft(w, r, chi.URLParam(r, "draftID"))
}

func (h *DraftHandlers) persistDraft(w http.ResponseWriter, r *http.Request, draftID string) {
	ctx := r.Context()
	if h.drafts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
		return
	}
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	var draft domain.OrderDraft
	if err := decodeJSONBody(r, maxDraftBodySize, &draft); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if draftID != "" {
		draft.ID = draftID
	}

	saved, err := h.drafts.Save(ctx, scope, draft)
	if err != nil {
		h.writeDraftError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if draftID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, saved)
}

func (h *DraftHandlers) deleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
		return
	}
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.drafts.Delete(ctx, scope, chi.URLParam(r, "draftID")); err != nil {
		h.writeDraftError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandlers) syncDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drafts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	deviceID := auth.DeviceIDFromRequest(r)
	if strings.TrimSpace(deviceID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a device id header is required to sync", http.StatusBadRequest))
		return
	}

	report, err := h.drafts.Sync(ctx, services.DraftScope{UserID: identity.UID, DeviceID: deviceID})
	if err != nil {
		h.writeDraftError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *DraftHandlers) writeDraftError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDraftInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDraftNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("draft_not_found", "draft not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDraftUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("drafts_unavailable", "draft service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
