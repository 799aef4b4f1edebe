package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/drinks-api/internal/response"
)

const (
	// DefaultRequestTimeout is the default request timeout (30 seconds)
	DefaultRequestTimeout = 30 * time.Second
)

// Timeout cancels the request context after timeout and answers with the 503
// envelope if the handler has not written a response by then.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, timeoutBody())
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			// TimeoutHandler writes its body straight to w on expiry; a
			// completed handler's own headers replace this one.
			w.Header().Set("Content-Type", "application/json")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func timeoutBody() string {
	body, _ := json.Marshal(response.ErrorEnvelope{
		Success: false,
		Error:   http.StatusServiceUnavailable,
		Message: response.Message(http.StatusServiceUnavailable),
	})
	return string(body)
}
