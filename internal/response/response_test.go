package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestWrite(t *testing.T) {
	t.Parallel()

	short := []models.DrinkShort{{ID: 1, Title: "Water", Recipe: []models.ShortIngredient{{Color: "blue", Parts: 1}}}}

	tests := []struct {
		name     string
		outcome  Outcome
		validate func(*testing.T, map[string]any)
	}{
		{
			name:    "list",
			outcome: List{Drinks: short},
			validate: func(t *testing.T, body map[string]any) {
				drinks, ok := body["drinks"].([]any)
				if !ok || len(drinks) != 1 {
					t.Fatalf("drinks = %v, want one element", body["drinks"])
				}
			},
		},
		{
			name:    "empty list",
			outcome: List{},
			validate: func(t *testing.T, body map[string]any) {
				drinks, ok := body["drinks"].([]any)
				if !ok || len(drinks) != 0 {
					t.Errorf("drinks = %v, want []", body["drinks"])
				}
			},
		},
		{
			name:    "item",
			outcome: Item{Drink: models.DrinkLong{ID: 7, Title: "Tea", Recipe: []models.Ingredient{}}},
			validate: func(t *testing.T, body map[string]any) {
				drink, ok := body["drinks"].(map[string]any)
				if !ok {
					t.Fatalf("drinks = %v, want object", body["drinks"])
				}
				if drink["title"] != "Tea" {
					t.Errorf("title = %v, want Tea", drink["title"])
				}
			},
		},
		{
			name:    "deleted",
			outcome: Deleted{ID: 42},
			validate: func(t *testing.T, body map[string]any) {
				if body["delete"] != float64(42) {
					t.Errorf("delete = %v, want 42", body["delete"])
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			Write(rec, tt.outcome)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := decode(t, rec)
			if body["success"] != true {
				t.Errorf("success = %v, want true", body["success"])
			}
			tt.validate(t, body)
		})
	}
}

func TestWrite_NilOutcome(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	Write(rec, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"missing header", apierror.NewAuthError(apierror.MissingOrMalformedHeader, nil), 401, "unauthorized"},
		{"malformed token", apierror.NewAuthError(apierror.MalformedToken, errors.New("bad base64")), 403, "action not allowed"},
		{"unknown key", apierror.NewAuthError(apierror.UnknownSigningKey, nil), 403, "action not allowed"},
		{"bad signature", apierror.NewAuthError(apierror.InvalidSignature, nil), 403, "action not allowed"},
		{"bad claims", apierror.NewAuthError(apierror.InvalidClaims, nil), 403, "action not allowed"},
		{"insufficient scope", apierror.NewAuthError(apierror.InsufficientScope, nil), 403, "action not allowed"},
		{"bad request", apierror.BadRequest("invalid JSON"), 400, "bad request"},
		{"unprocessable", apierror.Unprocessable("title", "title is required"), 422, "unprocessable"},
		{"not found", &apierror.NotFoundError{Resource: "drink", ID: 9}, 404, "resource not found"},
		{"wrapped not found", fmt.Errorf("lookup: %w", &apierror.NotFoundError{Resource: "drink", ID: 9}), 404, "resource not found"},
		{"storage", &apierror.StorageError{Op: "insert", Err: errors.New("pq: connection refused")}, 500, "internal server error"},
		{"internal", &apierror.InternalError{Err: errors.New("boom")}, 500, "internal server error"},
		{"unknown", errors.New("something odd"), 500, "internal server error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
			WriteError(rec, req, tt.err, zap.NewNop())

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if body["error"] != float64(tt.wantStatus) {
				t.Errorf("error = %v, want %d", body["error"], tt.wantStatus)
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
			if strings.Contains(rec.Body.String(), tt.err.Error()) {
				t.Errorf("body leaks error detail: %s", rec.Body.String())
			}
		})
	}
}

func TestWriteError_LogsAuthKind(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/drinks", nil)

	WriteError(rec, req, apierror.NewAuthError(apierror.InvalidClaims, errors.New("exp not satisfied")), zap.New(core))

	entries := logs.FilterMessage("auth_rejected").All()
	if len(entries) != 1 {
		t.Fatalf("auth_rejected entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["auth_error_kind"]; got != "invalid_claims" {
		t.Errorf("auth_error_kind = %v, want invalid_claims", got)
	}
}

func TestWriteStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  int
		message string
	}{
		{http.StatusNotFound, "resource not found"},
		{http.StatusMethodNotAllowed, "method not allowed"},
		{http.StatusRequestEntityTooLarge, "request entity too large"},
		{http.StatusUnsupportedMediaType, "unsupported media type"},
		{http.StatusServiceUnavailable, "service unavailable"},
		{http.StatusTeapot, "i'm a teapot"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteStatus(rec, tt.status)
		if rec.Code != tt.status {
			t.Errorf("status = %d, want %d", rec.Code, tt.status)
		}
		body := decode(t, rec)
		if body["message"] != tt.message {
			t.Errorf("message for %d = %v, want %q", tt.status, body["message"], tt.message)
		}
		if body["success"] != false {
			t.Errorf("success for %d = %v, want false", tt.status, body["success"])
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	Handler(http.StatusMethodNotAllowed).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/drinks", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
