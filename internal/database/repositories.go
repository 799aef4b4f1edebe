package database

import (
	"context"

	"github.com/benvon/drinks-api/internal/models"
)

// DrinkStore is the storage collaborator behind the drink routes.
// FindByID, Update and Delete return an error wrapping ErrNotFound for a
// missing id; other failures are *apierror.StorageError.
type DrinkStore interface {
	FindAll(ctx context.Context) ([]*models.Drink, error)
	FindByID(ctx context.Context, id int64) (*models.Drink, error)
	Insert(ctx context.Context, d *models.Drink) error
	Update(ctx context.Context, d *models.Drink) error
	Delete(ctx context.Context, id int64) error
}

// CorsPolicyStore reads and writes the stored CORS policy
type CorsPolicyStore interface {
	Get(ctx context.Context) (*models.CorsPolicy, error)
	Set(ctx context.Context, p *models.CorsPolicy) error
}

// Ensure concrete types implement the interfaces
var (
	_ DrinkStore      = (*DrinkRepository)(nil)
	_ CorsPolicyStore = (*CorsPolicyRepository)(nil)
)
