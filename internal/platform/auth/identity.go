package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cargolink/api/internal/platform/httpx"
)

// DeviceIDHeader carries the anonymous device identifier used to scope
// local draft storage before a user authenticates.
const DeviceIDHeader = "X-Device-ID"

// Identity describes the authenticated principal attached to a request.
type Identity struct {
	UID   string
	Email string
	Name  string
}

type identityContextKey struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// DeviceIDFromRequest extracts the anonymous device identifier, if any.
func DeviceIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(DeviceIDHeader))
}

var (
	errTokenMissingSubject = errors.New("auth: token missing subject")
	errUnexpectedAlgorithm = errors.New("auth: unexpected signing algorithm")
)

// Verifier validates bearer tokens issued by the external identity provider.
// Session management itself is delegated to that provider; this only checks
// the HS256 signature, expiry, and issuer of the presented token.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// VerifierOption customises the verifier.
type VerifierOption func(*Verifier)

// WithVerifierClock injects a custom clock, primarily for tests.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier constructs a Verifier over the shared signing secret.
func NewVerifier(secret, issuer string, opts ...VerifierOption) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	v := &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, returning the embedded identity.
func (v *Verifier) Verify(tokenValue string) (*Identity, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(tokenValue, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedAlgorithm
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return nil, errTokenMissingSubject
	}
	return &Identity{
		UID:   uid,
		Email: strings.TrimSpace(claims.Email),
		Name:  strings.TrimSpace(claims.Name),
	}, nil
}

// Middleware resolves an optional bearer token into a request identity.
// Requests without a token pass through anonymously; invalid tokens are
// rejected so stale credentials never masquerade as anonymous traffic.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := v.Verify(token)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_token", "bearer token is invalid or expired", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAuth rejects requests lacking a verified identity.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
