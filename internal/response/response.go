// Package response maps handler outcomes and errors onto the JSON envelope
// every route answers with.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/logger"
	"github.com/benvon/drinks-api/internal/request"
	"go.uber.org/zap"
)

// Outcome is a successful handler result
type Outcome interface {
	envelope() any
}

// List is a collection of drink projections
type List struct {
	Drinks any
}

// Item is a single drink projection
type Item struct {
	Drink any
}

// Deleted reports the id of a removed drink
type Deleted struct {
	ID int64
}

type drinksEnvelope struct {
	Success bool `json:"success"`
	Drinks  any  `json:"drinks"`
}

type deletedEnvelope struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}

// ErrorEnvelope is the body of every failed request
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func (o List) envelope() any {
	drinks := o.Drinks
	if drinks == nil {
		drinks = []any{}
	}
	return drinksEnvelope{Success: true, Drinks: drinks}
}

func (o Item) envelope() any {
	return drinksEnvelope{Success: true, Drinks: o.Drink}
}

func (o Deleted) envelope() any {
	return deletedEnvelope{Success: true, Delete: o.ID}
}

var messages = map[int]string{
	http.StatusBadRequest:            "bad request",
	http.StatusUnauthorized:          "unauthorized",
	http.StatusForbidden:             "action not allowed",
	http.StatusNotFound:              "resource not found",
	http.StatusMethodNotAllowed:      "method not allowed",
	http.StatusRequestEntityTooLarge: "request entity too large",
	http.StatusUnsupportedMediaType:  "unsupported media type",
	http.StatusUnprocessableEntity:   "unprocessable",
	http.StatusInternalServerError:   "internal server error",
	http.StatusServiceUnavailable:    "service unavailable",
}

// Message returns the client-facing message for status
func Message(status int) string {
	if msg, ok := messages[status]; ok {
		return msg
	}
	return strings.ToLower(http.StatusText(status))
}

// Write sends a 200 response for outcome
func Write(w http.ResponseWriter, outcome Outcome) {
	if outcome == nil {
		WriteStatus(w, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, outcome.envelope())
}

// WriteStatus sends the error envelope for a bare status code
func WriteStatus(w http.ResponseWriter, status int) {
	writeJSON(w, status, ErrorEnvelope{
		Success: false,
		Error:   status,
		Message: Message(status),
	})
}

// WriteError maps err onto a status and sends its envelope. Error detail is
// logged, never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, log *zap.Logger) {
	status := apierror.Status(err)

	if log != nil {
		fields := []zap.Field{
			zap.Int("status_code", status),
			zap.String("method", r.Method),
			zap.String("path", logger.SanitizePath(r.URL.Path)),
			zap.Error(err),
		}
		var authErr *apierror.AuthError
		if errors.As(err, &authErr) {
			fields = append(fields, zap.String("auth_error_kind", authErr.Kind.String()))
			if sub := request.Subject(r); sub != "" {
				fields = append(fields, zap.String("subject", logger.SanitizeSubject(sub)))
			}
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request_failed", fields...)
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			log.Info("auth_rejected", fields...)
		default:
			log.Debug("request_rejected", fields...)
		}
	}

	WriteStatus(w, status)
}

// Handler returns an http.Handler that always answers with status
func Handler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteStatus(w, status)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
