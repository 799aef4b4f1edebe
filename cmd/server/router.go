package main

import (
	"net/http"
	"time"

	"github.com/benvon/drinks-api/internal/handlers"
	"github.com/benvon/drinks-api/internal/middleware"
	"github.com/benvon/drinks-api/internal/response"
	"github.com/benvon/drinks-api/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// routerOptions holds everything newRouter wires together
type routerOptions struct {
	guard          *middleware.ScopeGuard
	drinks         *handlers.DrinkHandler
	health         *handlers.HealthChecker
	openAPI        *handlers.OpenAPIHandler
	cors           *middleware.CORSReloader
	logger         *zap.Logger
	enableHSTS     bool
	requestTimeout time.Duration
	tracing        bool
}

// newRouter builds the HTTP surface. Request IDs, security headers and CORS
// wrap the router itself so unmatched routes and preflights get them too; the
// rest runs per matched route, first registered outermost.
func newRouter(opts routerOptions) http.Handler {
	r := mux.NewRouter()

	// Unmatched paths and methods get the same envelope as every other failure.
	r.NotFoundHandler = response.Handler(http.StatusNotFound)
	r.MethodNotAllowedHandler = response.Handler(http.StatusMethodNotAllowed)

	if opts.tracing {
		r.Use(telemetry.Middleware())
	}
	r.Use(middleware.Timeout(opts.requestTimeout))
	r.Use(middleware.ErrorHandler(opts.logger))
	r.Use(middleware.Audit(opts.logger))
	r.Use(middleware.Logging(opts.logger))

	// Public routes
	opts.health.RegisterRoutes(r)
	opts.openAPI.RegisterRoutes(r)

	// Drink routes, each behind its own permission. Body guards run only
	// once the token has been accepted.
	guard := opts.guard.With(
		middleware.MaxRequestSize(middleware.DefaultMaxRequestSize),
		middleware.ContentType,
	)
	opts.drinks.RegisterRoutes(r, guard)

	var h http.Handler = r
	if opts.cors != nil {
		h = opts.cors.Middleware()(h)
	}
	h = middleware.SecurityHeaders(opts.enableHSTS)(h)
	return middleware.RequestID(h)
}
