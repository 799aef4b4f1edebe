package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/benvon/drinks-api/internal/request"
	"github.com/benvon/drinks-api/internal/response"
	"github.com/benvon/drinks-api/internal/services/oidc"
	"github.com/benvon/drinks-api/internal/services/oidc/oidctest"
	"go.uber.org/zap"
)

type stubVerifier struct {
	claims *models.Claims
	err    error
	calls  atomic.Int32
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (*models.Claims, error) {
	s.calls.Add(1)
	return s.claims, s.err
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		want    string
		wantErr bool
	}{
		{name: "valid", headers: []string{"Bearer abc.def.ghi"}, want: "abc.def.ghi"},
		{name: "lowercase scheme", headers: []string{"bearer abc.def.ghi"}, want: "abc.def.ghi"},
		{name: "mixed case scheme", headers: []string{"BeArEr tok"}, want: "tok"},
		{name: "missing", wantErr: true},
		{name: "empty", headers: []string{""}, wantErr: true},
		{name: "scheme only", headers: []string{"Bearer"}, wantErr: true},
		{name: "scheme and spaces", headers: []string{"Bearer   "}, wantErr: true},
		{name: "basic scheme", headers: []string{"Basic dXNlcjpwYXNz"}, wantErr: true},
		{name: "extra parts", headers: []string{"Bearer a b"}, wantErr: true},
		{name: "token without scheme", headers: []string{"abc.def.ghi"}, wantErr: true},
		{name: "multiple headers", headers: []string{"Bearer a", "Bearer b"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/drinks", nil)
			for _, h := range tt.headers {
				r.Header.Add("Authorization", h)
			}

			got, err := BearerToken(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BearerToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var authErr *apierror.AuthError
				if !errors.As(err, &authErr) || authErr.Kind != apierror.MissingOrMalformedHeader {
					t.Errorf("BearerToken() error = %v, want MissingOrMalformedHeader", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScopeGuard_WithScope(t *testing.T) {
	t.Parallel()

	granted := models.NewClaims("auth0|barista", "iss", []string{"drinks"}, time.Now().Add(time.Hour), []string{"get:drinks"})

	tests := []struct {
		name        string
		header      string
		verifier    *stubVerifier
		bodyErr     error
		wantStatus  int
		wantMessage string
		wantBody    bool
		wantVerify  int32
	}{
		{
			name:       "allowed",
			header:     "Bearer token",
			verifier:   &stubVerifier{claims: granted},
			wantStatus: http.StatusOK,
			wantBody:   true,
			wantVerify: 1,
		},
		{
			name:        "missing header never verifies",
			verifier:    &stubVerifier{claims: granted},
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "unauthorized",
		},
		{
			name:        "verification failure",
			header:      "Bearer token",
			verifier:    &stubVerifier{err: apierror.NewAuthError(apierror.InvalidSignature, nil)},
			wantStatus:  http.StatusForbidden,
			wantMessage: "action not allowed",
			wantVerify:  1,
		},
		{
			name:        "insufficient scope",
			header:      "Bearer token",
			verifier:    &stubVerifier{claims: models.NewClaims("u", "iss", nil, time.Now().Add(time.Hour), []string{"get:drinks-detail"})},
			wantStatus:  http.StatusForbidden,
			wantMessage: "action not allowed",
			wantVerify:  1,
		},
		{
			name:        "key provider failure",
			header:      "Bearer token",
			verifier:    &stubVerifier{err: &apierror.InternalError{Err: errors.New("jwks down")}},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
			wantVerify:  1,
		},
		{
			name:        "body error is mapped",
			header:      "Bearer token",
			verifier:    &stubVerifier{claims: granted},
			bodyErr:     &apierror.NotFoundError{Resource: "drink", ID: 3},
			wantStatus:  http.StatusNotFound,
			wantMessage: "resource not found",
			wantBody:    true,
			wantVerify:  1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var ran atomic.Bool
			guard := NewScopeGuard(tt.verifier, zap.NewNop())
			h := guard.WithScope("get:drinks", func(r *http.Request, claims *models.Claims) (response.Outcome, error) {
				ran.Store(true)
				if request.ClaimsFromContext(r) != claims {
					t.Error("claims not attached to request context")
				}
				if tt.bodyErr != nil {
					return nil, tt.bodyErr
				}
				return response.List{Drinks: []models.DrinkShort{}}, nil
			})

			req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ran.Load() != tt.wantBody {
				t.Errorf("body ran = %v, want %v", ran.Load(), tt.wantBody)
			}
			if got := tt.verifier.calls.Load(); got != tt.wantVerify {
				t.Errorf("verifier calls = %d, want %d", got, tt.wantVerify)
			}

			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if tt.wantMessage != "" && body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
			if _, ok := body["success"]; !ok {
				t.Error("envelope missing success")
			}
		})
	}
}

func TestScopeGuard_WithScope_RealTokens(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	verifier, err := oidc.NewVerifier(oidc.NewStaticKeySet(signer.KeySet()), signer.Issuer, signer.Audience, "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	guard := NewScopeGuard(verifier, zap.NewNop())

	h := guard.WithScope("delete:drinks", func(r *http.Request, claims *models.Claims) (response.Outcome, error) {
		return response.Deleted{ID: 1}, nil
	})

	good := signer.Token(t, "delete:drinks")

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "valid", token: good, wantStatus: http.StatusOK},
		{name: "flipped signature", token: oidctest.FlipSignatureByte(good), wantStatus: http.StatusForbidden},
		{name: "wrong permission", token: signer.Token(t, "get:drinks"), wantStatus: http.StatusForbidden},
		{name: "garbage", token: "not-a-jwt", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodDelete, "/drinks/1", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestScopeGuard_With(t *testing.T) {
	t.Parallel()

	granted := models.NewClaims("auth0|barista", "iss", []string{"drinks"}, time.Now().Add(time.Hour), []string{"post:drinks"})

	tests := []struct {
		name        string
		header      string
		contentType string
		verifier    *stubVerifier
		wantStatus  int
		wantInner   bool
		wantBody    bool
	}{
		{
			name:        "missing header skips body guards",
			verifier:    &stubVerifier{claims: granted},
			contentType: "text/plain",
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "wrong scope skips body guards",
			header:      "Bearer token",
			contentType: "text/plain",
			verifier:    &stubVerifier{claims: models.NewClaims("u", "iss", nil, time.Now().Add(time.Hour), []string{"get:drinks"})},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "accepted token reaches body guards",
			header:      "Bearer token",
			contentType: "text/plain",
			verifier:    &stubVerifier{claims: granted},
			wantStatus:  http.StatusUnsupportedMediaType,
			wantInner:   true,
		},
		{
			name:        "accepted token and json body",
			header:      "Bearer token",
			contentType: "application/json",
			verifier:    &stubVerifier{claims: granted},
			wantStatus:  http.StatusOK,
			wantInner:   true,
			wantBody:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var inner, ran atomic.Bool
			mark := func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					inner.Store(true)
					if request.ClaimsFromContext(r) == nil {
						t.Error("claims not attached before body guards")
					}
					next.ServeHTTP(w, r)
				})
			}

			base := NewScopeGuard(tt.verifier, zap.NewNop())
			guard := base.With(mark, ContentType)
			h := guard.WithScope("post:drinks", func(_ *http.Request, _ *models.Claims) (response.Outcome, error) {
				ran.Store(true)
				return response.Deleted{ID: 1}, nil
			})

			req := httptest.NewRequest(http.MethodPost, "/drinks", nil)
			req.Header.Set("Content-Type", tt.contentType)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if inner.Load() != tt.wantInner {
				t.Errorf("body guards ran = %v, want %v", inner.Load(), tt.wantInner)
			}
			if ran.Load() != tt.wantBody {
				t.Errorf("body ran = %v, want %v", ran.Load(), tt.wantBody)
			}
			if len(base.inner) != 0 {
				t.Error("With() modified the original guard")
			}
		})
	}
}
