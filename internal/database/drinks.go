package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/lib/pq"
)

// ErrNotFound is returned when the addressed drink does not exist
var ErrNotFound = errors.New("drink not found")

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// DrinkRepository handles drink database operations. Every method is a
// single statement, so each call either fully applies or not at all.
type DrinkRepository struct {
	db *DB
}

// NewDrinkRepository creates a new drink repository
func NewDrinkRepository(db *DB) *DrinkRepository {
	return &DrinkRepository{db: db}
}

// FindAll returns every drink ordered by id
func (r *DrinkRepository) FindAll(ctx context.Context) ([]*models.Drink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, recipe, created_at, updated_at
		FROM drinks
		ORDER BY id
	`)
	if err != nil {
		return nil, &apierror.StorageError{Op: "list drinks", Err: err}
	}
	defer rows.Close()

	drinks := []*models.Drink{}
	for rows.Next() {
		d := &models.Drink{}
		if err := rows.Scan(&d.ID, &d.Title, &d.Recipe, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, &apierror.StorageError{Op: "scan drink", Err: err}
		}
		drinks = append(drinks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &apierror.StorageError{Op: "list drinks", Err: err}
	}
	return drinks, nil
}

// FindByID returns the drink with id, or an error wrapping ErrNotFound
func (r *DrinkRepository) FindByID(ctx context.Context, id int64) (*models.Drink, error) {
	d := &models.Drink{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, recipe, created_at, updated_at
		FROM drinks
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Title, &d.Recipe, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("drink %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, &apierror.StorageError{Op: "get drink", Err: err}
	}
	return d, nil
}

// Insert stores a new drink and fills in its id and timestamps
func (r *DrinkRepository) Insert(ctx context.Context, d *models.Drink) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO drinks (title, recipe, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, d.Title, d.Recipe, now, now).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return mapWriteError("insert drink", err)
	}
	return nil
}

// Update overwrites the title and recipe of an existing drink
func (r *DrinkRepository) Update(ctx context.Context, d *models.Drink) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE drinks
		SET title = $2, recipe = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Title, d.Recipe, time.Now().UTC()).Scan(&d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("drink %d: %w", d.ID, ErrNotFound)
	}
	if err != nil {
		return mapWriteError("update drink", err)
	}
	return nil
}

// Delete removes the drink with id
func (r *DrinkRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = $1`, id)
	if err != nil {
		return &apierror.StorageError{Op: "delete drink", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &apierror.StorageError{Op: "delete drink", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("drink %d: %w", id, ErrNotFound)
	}
	return nil
}

// mapWriteError turns a duplicate title into a 422 and anything else into a StorageError
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apierror.Unprocessable("title", "a drink with this title already exists")
	}
	return &apierror.StorageError{Op: op, Err: err}
}
