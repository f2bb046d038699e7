package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cargolink/api/internal/platform/httpx"
	"github.com/cargolink/api/internal/platform/storage"
)

const (
	maxUploadBodySize   = 16 * 1024
	defaultMaxUploadLen = 20 << 20
)

// UploadHandlers issues presigned upload URLs for invoices and product images.
type UploadHandlers struct {
	client  *storage.Client
	bucket  string
	maxSize int64
	ttl     time.Duration
	now     func() time.Time
}

// UploadHandlersDeps wires the signed URL client and bucket configuration.
type UploadHandlersDeps struct {
	Client  *storage.Client
	Bucket  string
	MaxSize int64
	TTL     time.Duration
	Clock   func() time.Time
}

// NewUploadHandlers constructs handlers for the /uploads group.
func NewUploadHandlers(deps UploadHandlersDeps) *UploadHandlers {
	h := &UploadHandlers{
		client:  deps.Client,
		bucket:  deps.Bucket,
		maxSize: deps.MaxSize,
		ttl:     deps.TTL,
		now:     deps.Clock,
	}
	if h.maxSize <= 0 {
		h.maxSize = defaultMaxUploadLen
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes wires the upload endpoints onto the provided router.
func (h *UploadHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createUploadURL)
}

type uploadRequest struct {
	Kind        string `json:"kind"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type uploadResponse struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

func (h *UploadHandlers) createUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.client == nil || h.bucket == "" {
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "upload signing is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req uploadRequest
	if err := decodeJSONBody(r, maxUploadBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	kind := storage.UploadKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	allowed := storage.ContentTypeFor(kind)
	if len(allowed) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "kind must be invoice or product-image", http.StatusBadRequest))
		return
	}

	key, err := storage.UploadKey(kind, req.FileName, h.now().UTC())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	signed, err := h.client.SignedUploadURL(ctx, h.bucket, key, storage.UploadOptions{
		ContentType:         req.ContentType,
		AllowedContentTypes: allowed,
		MaxSize:             h.maxSize,
		ExpiresIn:           h.ttl,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, uploadResponse{
		Key:       key,
		URL:       signed.URL,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ExpiresAt: signed.ExpiresAt,
	})
}
