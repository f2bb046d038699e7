package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/cargolink/api/internal/platform/httpx"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBodyBytes = 1 << 20

// SignPayload computes the hex HMAC-SHA256 signature the gateway attaches
// to webhook deliveries. Shared with tests and outbound verification tooling.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the presented signature against the raw body using
// a constant-time comparison.
func VerifySignature(secret string, body []byte, presented string) bool {
	presented = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(presented), "sha256="))
	decoded, err := hex.DecodeString(presented)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// WebhookSignatureMiddleware authenticates gateway callbacks. The signature
// is computed over the raw body before any JSON decoding, so the body is
// buffered here and restored for downstream handlers. The optional hook is
// invoked with a reason label for every rejected delivery.
func WebhookSignatureMiddleware(secret string, onReject ...func(reason string)) func(http.Handler) http.Handler {
	rejected := func(string) {}
	if len(onReject) > 0 && onReject[0] != nil {
		rejected = onReject[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(SignatureHeader)
			if strings.TrimSpace(presented) == "" {
				rejected("missing_signature")
				httpx.WriteError(r.Context(), w, httpx.NewError("missing_signature", "webhook signature header is required", http.StatusBadRequest))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
			if err != nil {
				rejected("unreadable_body")
				httpx.WriteError(r.Context(), w, httpx.NewError("unreadable_body", "failed to read request body", http.StatusBadRequest))
				return
			}
			_ = r.Body.Close()

			if !VerifySignature(secret, body, presented) {
				rejected("invalid_signature")
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_signature", "webhook signature mismatch", http.StatusBadRequest))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
