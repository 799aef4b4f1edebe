package middleware

import (
	"mime"
	"net/http"

	"github.com/benvon/drinks-api/internal/response"
)

// ContentType requires an application/json body on POST, PATCH and PUT
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				response.WriteStatus(w, http.StatusBadRequest)
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				response.WriteStatus(w, http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
