package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// healthCheckTimeout bounds each dependency check in extended mode
const healthCheckTimeout = 5 * time.Second

// HealthCheckFunc reports whether one dependency is reachable
type HealthCheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheckFunc
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks []namedCheck
	logger *zap.Logger
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(log *zap.Logger) *HealthChecker {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthChecker{logger: log}
}

// AddCheck registers a dependency checked in extended mode. A nil check is ignored.
func (h *HealthChecker) AddCheck(name string, check HealthCheckFunc) *HealthChecker {
	if check != nil {
		h.checks = append(h.checks, namedCheck{name: name, check: check})
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Success   bool              `json:"success"`
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RegisterRoutes registers the public health route
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
}

// HealthCheck handles the /healthz endpoint. With ?mode=extended every
// registered dependency is checked and any failure makes the answer a 503.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		resp.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := h.run(r.Context(), c); err != nil {
				// Details stay in the log; the body only names the dependency.
				h.logger.Warn("health_check_failed", zap.String("dependency", c.name), zap.Error(err))
				resp.Checks[c.name] = "unhealthy"
				resp.Status = "unhealthy"
				resp.Success = false
				continue
			}
			resp.Checks[c.name] = "healthy"
		}
		if !resp.Success {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Debug("health_response_write_failed", zap.Error(err))
	}
}

func (h *HealthChecker) run(ctx context.Context, c namedCheck) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.check(ctx)
}
