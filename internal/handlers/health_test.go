package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestHealthChecker_HealthCheck(t *testing.T) {
	t.Parallel()

	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: connection refused") }

	tests := []struct {
		name        string
		query       string
		checks      map[string]HealthCheckFunc
		wantStatus  int
		wantSuccess bool
		wantChecks  map[string]string
	}{
		{
			name:        "basic mode skips checks",
			checks:      map[string]HealthCheckFunc{"database": failing},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
		},
		{
			name:        "extended mode all healthy",
			query:       "?mode=extended",
			checks:      map[string]HealthCheckFunc{"database": healthy, "redis": healthy},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
			wantChecks:  map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:        "extended mode one failing",
			query:       "?mode=extended",
			checks:      map[string]HealthCheckFunc{"database": healthy, "rabbitmq": failing},
			wantStatus:  http.StatusServiceUnavailable,
			wantChecks:  map[string]string{"database": "healthy", "rabbitmq": "unhealthy"},
		},
		{
			name:        "nil check ignored",
			query:       "?mode=extended",
			checks:      map[string]HealthCheckFunc{"redis": nil},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
			wantChecks:  map[string]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(nil)
			for name, check := range tt.checks {
				h.AddCheck(name, check)
			}
			r := mux.NewRouter()
			h.RegisterRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if strings.Contains(rec.Body.String(), "10.0.0.5") {
				t.Error("dependency error detail leaked into the response")
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", resp.Success, tt.wantSuccess)
			}
			if resp.Timestamp == "" {
				t.Error("Timestamp is empty")
			}
			if tt.wantChecks == nil {
				if resp.Checks != nil {
					t.Errorf("Checks = %v, want none", resp.Checks)
				}
				return
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("Checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("Checks[%s] = %q, want %q", name, resp.Checks[name], want)
				}
			}
		})
	}
}
