package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/drinks-api/internal/models"
)

type contextKey string

const (
	claimsContextKey    contextKey = "claims"
	requestIDContextKey contextKey = "request_id"
)

// ClaimsContextKey returns the context key used for verified claims. Exposed for tests that inject non-claims values.
func ClaimsContextKey() contextKey { return claimsContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithClaims returns a context with the verified token claims attached.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the claims from the request context, or nil if missing or wrong type.
func ClaimsFromContext(r *http.Request) *models.Claims {
	c, _ := r.Context().Value(claimsContextKey).(*models.Claims)
	return c
}

// Subject returns the token subject for logging, or "" for anonymous requests.
func Subject(r *http.Request) string {
	if c := ClaimsFromContext(r); c != nil {
		return c.Subject
	}
	return ""
}

// WithID returns a context carrying the request id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// ID returns the request id, or "" if none was assigned.
func ID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}
