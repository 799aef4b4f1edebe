package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/benvon/drinks-api/internal/request"
	"github.com/benvon/drinks-api/internal/response"
	"github.com/benvon/drinks-api/internal/services/oidc"
	"go.uber.org/zap"
)

// TokenVerifier verifies a raw bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Claims, error)
}

// ClaimsHandler is a route body that runs only after its permission has been
// checked. It receives the verified claims for the request.
type ClaimsHandler func(r *http.Request, claims *models.Claims) (response.Outcome, error)

// ScopeGuard wraps route bodies with token verification and a permission check
type ScopeGuard struct {
	verifier TokenVerifier
	logger   *zap.Logger
	inner    []func(http.Handler) http.Handler
}

// NewScopeGuard creates a new ScopeGuard
func NewScopeGuard(verifier TokenVerifier, logger *zap.Logger) *ScopeGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeGuard{verifier: verifier, logger: logger}
}

// With returns a copy of the guard that runs mw between a successful
// permission check and the route body, first listed outermost. Request body
// guards belong here so callers without a valid token only ever see 401/403.
func (g *ScopeGuard) With(mw ...func(http.Handler) http.Handler) *ScopeGuard {
	inner := make([]func(http.Handler) http.Handler, 0, len(g.inner)+len(mw))
	inner = append(inner, g.inner...)
	inner = append(inner, mw...)
	return &ScopeGuard{verifier: g.verifier, logger: g.logger, inner: inner}
}

// WithScope returns a handler that runs body only when the bearer token is
// valid and grants permission. Any failure is written by the response mapper
// and body is never called.
func (g *ScopeGuard) WithScope(permission string, body ClaimsHandler) http.Handler {
	var run http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, err := body(r, request.ClaimsFromContext(r))
		if err != nil {
			response.WriteError(w, r, err, g.logger)
			return
		}
		response.Write(w, outcome)
	})
	for i := len(g.inner) - 1; i >= 0; i-- {
		run = g.inner[i](run)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.authenticate(r, permission)
		if err != nil {
			response.WriteError(w, r, err, g.logger)
			return
		}
		run.ServeHTTP(w, r.WithContext(request.WithClaims(r.Context(), claims)))
	})
}

func (g *ScopeGuard) authenticate(r *http.Request, permission string) (*models.Claims, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if err := oidc.Authorize(permission, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from a single "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	values := r.Header.Values("Authorization")
	switch len(values) {
	case 0:
		return "", apierror.NewAuthError(apierror.MissingOrMalformedHeader, errors.New("authorization header is missing"))
	case 1:
	default:
		return "", apierror.NewAuthError(apierror.MissingOrMalformedHeader, errors.New("multiple authorization headers"))
	}

	parts := strings.Fields(values[0])
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", apierror.NewAuthError(apierror.MissingOrMalformedHeader, errors.New("authorization header must be Bearer <token>"))
	}
	return parts[1], nil
}
