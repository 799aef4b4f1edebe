package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/drinks-api/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// CORSPolicySource supplies the stored CORS policy. A nil policy with a nil
// error means none is stored.
type CORSPolicySource interface {
	Get(ctx context.Context) (*models.CorsPolicy, error)
}

// CORSReloader applies the stored drinks-api CORS policy through rs/cors and
// reloads it on an interval, so origin changes need no restart.
type CORSReloader struct {
	repo     CORSPolicySource
	fallback string // e.g. FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	initial  sync.Once
	mu       sync.RWMutex
	current  *cors.Cors
}

// NewCORSReloader creates a reloader. frontendURLFallback is a comma-separated
// origin list used while no policy is stored.
func NewCORSReloader(repo CORSPolicySource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      logOrNop(log),
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that applies the current CORS policy. The
// policy is loaded the first time Middleware is called.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	r.initial.Do(func() { r.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *CORSReloader) load(ctx context.Context) {
	policy, err := r.repo.Get(ctx)
	if err != nil {
		r.log.Warn("cors_policy_load_failed", zap.Error(err))
	}
	if err != nil || policy == nil {
		policy = &models.CorsPolicy{AllowedOrigins: models.ParseOrigins(r.fallback), MaxAge: models.DefaultCorsMaxAge}
	}
	origins := policy.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: policy.AllowCredentials,
		MaxAge:           policy.MaxAgeSeconds(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
	})
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}

func logOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
