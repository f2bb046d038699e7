package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-signing-secret-0123456789"

func issueToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifierVerify(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewVerifier(testSecret, "cargolink", WithVerifierClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		token := issueToken(t, testSecret, jwt.MapClaims{
			"sub":   "user-1",
			"iss":   "cargolink",
			"email": "u@example.com",
			"name":  "U Example",
			"exp":   now.Add(time.Hour).Unix(),
		})
		identity, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if identity.UID != "user-1" || identity.Email != "u@example.com" {
			t.Fatalf("unexpected identity %+v", identity)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token := issueToken(t, testSecret, jwt.MapClaims{
			"sub": "user-1",
			"iss": "cargolink",
			"exp": now.Add(-time.Minute).Unix(),
		})
		if _, err := verifier.Verify(token); err == nil {
			t.Fatal("expected expired token to fail")
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := issueToken(t, testSecret, jwt.MapClaims{
			"sub": "user-1",
			"iss": "someone-else",
			"exp": now.Add(time.Hour).Unix(),
		})
		if _, err := verifier.Verify(token); err == nil {
			t.Fatal("expected issuer mismatch to fail")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := issueToken(t, "another-secret-value-9876543210abc", jwt.MapClaims{
			"sub": "user-1",
			"iss": "cargolink",
			"exp": now.Add(time.Hour).Unix(),
		})
		if _, err := verifier.Verify(token); err == nil {
			t.Fatal("expected signature mismatch to fail")
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		token := issueToken(t, testSecret, jwt.MapClaims{
			"iss": "cargolink",
			"exp": now.Add(time.Hour).Unix(),
		})
		if _, err := verifier.Verify(token); err == nil {
			t.Fatal("expected missing subject to fail")
		}
	})
}

func TestMiddlewareAndRequireAuth(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewVerifier(testSecret, "cargolink", WithVerifierClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	var gotUID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			gotUID = identity.UID
		}
		w.WriteHeader(http.StatusOK)
	})
	protected := verifier.Middleware()(RequireAuth()(inner))

	t.Run("anonymous request rejected by RequireAuth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid token passes", func(t *testing.T) {
		token := issueToken(t, testSecret, jwt.MapClaims{
			"sub": "user-42",
			"iss": "cargolink",
			"exp": now.Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotUID != "user-42" {
			t.Fatalf("expected identity uid user-42, got %q", gotUID)
		}
	})
}

func TestDeviceIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
	req.Header.Set(DeviceIDHeader, "  device-abc  ")
	if got := DeviceIDFromRequest(req); got != "device-abc" {
		t.Fatalf("expected trimmed device id, got %q", got)
	}
}
