package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"payment.captured"}`)
	sig := SignPayload(secret, body)

	if !VerifySignature(secret, body, sig) {
		t.Fatal("expected valid signature to verify")
	}
	if !VerifySignature(secret, body, "sha256="+sig) {
		t.Fatal("expected prefixed signature to verify")
	}
	if VerifySignature(secret, body, SignPayload("other", body)) {
		t.Fatal("expected signature from wrong secret to fail")
	}
	if VerifySignature(secret, []byte(`{"event":"tampered"}`), sig) {
		t.Fatal("expected signature over different body to fail")
	}
	if VerifySignature(secret, body, "not-hex") {
		t.Fatal("expected malformed signature to fail")
	}
}

func TestWebhookSignatureMiddleware(t *testing.T) {
	secret := "whsec_test"
	body := `{"event":"payment.captured","reference":"ord_123"}`

	var seenBody string
	handler := WebhookSignatureMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seenBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid signature passes and body is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
		req.Header.Set(SignatureHeader, SignPayload(secret, []byte(body)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seenBody != body {
			t.Fatalf("expected body to be restored for handler, got %q", seenBody)
		}
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
		req.Header.Set(SignatureHeader, SignPayload("wrong", []byte(body)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
