package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cargolink/api/internal/platform/storage"
)

func newTestUploadHandlers(t *testing.T) *UploadHandlers {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	accountJSON, err := json.Marshal(map[string]string{
		"client_email": "uploader@test-project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	})
	if err != nil {
		t.Fatalf("failed to marshal account json: %v", err)
	}

	signer, err := storage.NewServiceAccountSignerFromJSON(accountJSON)
	if err != nil {
		t.Fatalf("failed to build signer: %v", err)
	}
	client, err := storage.NewClient(signer)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	return NewUploadHandlers(UploadHandlersDeps{
		Client: client,
		Bucket: "cargolink-uploads-test",
		Clock:  func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
	})
}

func TestUploadHandlersCreateUploadURL(t *testing.T) {
	router := NewRouter(WithUploadRoutes(newTestUploadHandlers(t).Routes))

	body := `{"kind": "invoice", "fileName": "receipt.pdf", "contentType": "application/pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Method != http.MethodPut {
		t.Fatalf("expected PUT method, got %q", resp.Method)
	}
	if !strings.HasPrefix(resp.Key, "uploads/2026/08/28/") || !strings.HasSuffix(resp.Key, ".pdf") {
		t.Fatalf("unexpected object key: %q", resp.Key)
	}
	if !strings.Contains(resp.URL, "cargolink-uploads-test") {
		t.Fatalf("expected bucket in signed url, got %q", resp.URL)
	}
	if resp.Headers["Content-Type"] != "application/pdf" {
		t.Fatalf("expected content type header, got %v", resp.Headers)
	}
}

func TestUploadHandlersRejectsUnknownKind(t *testing.T) {
	router := NewRouter(WithUploadRoutes(newTestUploadHandlers(t).Routes))

	body := `{"kind": "archive", "fileName": "dump.zip", "contentType": "application/zip"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestUploadHandlersRejectsDisallowedContentType(t *testing.T) {
	router := NewRouter(WithUploadRoutes(newTestUploadHandlers(t).Routes))

	body := `{"kind": "product-image", "fileName": "photo.png", "contentType": "application/pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestUploadHandlersRejectsTraversalFileName(t *testing.T) {
	router := NewRouter(WithUploadRoutes(newTestUploadHandlers(t).Routes))

	body := `{"kind": "invoice", "fileName": "../../etc/passwd.pdf", "contentType": "application/pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
