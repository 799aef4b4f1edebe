package middleware

import (
	"net/http"

	logpkg "github.com/benvon/drinks-api/internal/logger"
	"github.com/benvon/drinks-api/internal/request"
	"github.com/benvon/drinks-api/internal/response"
	"go.uber.org/zap"
)

// ErrorHandler recovers panics in downstream handlers and answers with the
// 500 envelope. Panic details are logged, never sent to the client.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", logpkg.SanitizePath(r.URL.Path)),
						zap.String("method", r.Method),
						zap.String("request_id", request.ID(r)),
					)
					response.WriteStatus(w, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
