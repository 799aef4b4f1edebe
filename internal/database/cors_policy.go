package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/drinks-api/internal/models"
	"github.com/lib/pq"
)

// CorsService is the cors_policy row the drinks API reads
const CorsService = "drinks-api"

// CorsPolicyRepository stores the drinks API's browser origin policy
type CorsPolicyRepository struct {
	db      *DB
	service string
}

// NewCorsPolicyRepository creates a repository for the drinks API policy
func NewCorsPolicyRepository(db *DB) *CorsPolicyRepository {
	return &CorsPolicyRepository{db: db, service: CorsService}
}

// Get returns the stored policy, or nil when none has been set
func (r *CorsPolicyRepository) Get(ctx context.Context) (*models.CorsPolicy, error) {
	p := &models.CorsPolicy{}
	var maxAge int64
	err := r.db.QueryRowContext(ctx, `
		SELECT service, allowed_origins, allow_credentials, max_age_seconds, updated_at
		FROM cors_policy
		WHERE service = $1
	`, r.service).Scan(&p.Service, pq.Array(&p.AllowedOrigins), &p.AllowCredentials, &maxAge, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors policy: %w", err)
	}
	p.MaxAge = time.Duration(maxAge) * time.Second
	return p, nil
}

// Set validates and upserts the policy
func (r *CorsPolicyRepository) Set(ctx context.Context, p *models.CorsPolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid cors policy: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_policy (service, allowed_origins, allow_credentials, max_age_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (service) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age_seconds = EXCLUDED.max_age_seconds,
			updated_at = EXCLUDED.updated_at
	`, r.service, pq.Array(p.AllowedOrigins), p.AllowCredentials, int64(p.MaxAgeSeconds()), time.Now())
	if err != nil {
		return fmt.Errorf("set cors policy: %w", err)
	}
	return nil
}
