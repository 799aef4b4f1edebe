package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/database"
	"github.com/benvon/drinks-api/internal/logger"
	"github.com/benvon/drinks-api/internal/middleware"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/benvon/drinks-api/internal/queue"
	"github.com/benvon/drinks-api/internal/response"
	"github.com/benvon/drinks-api/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Permissions required by the drink routes
const (
	PermListDrinks   = "get:drinks"
	PermDrinkDetails = "get:drinks-detail"
	PermCreateDrink  = "post:drinks"
	PermUpdateDrink  = "patch:drinks"
	PermDeleteDrink  = "delete:drinks"
)

// eventPublishTimeout bounds how long a write waits to hand off its event
const eventPublishTimeout = 5 * time.Second

// DrinkHandler handles the drink routes
type DrinkHandler struct {
	store     database.DrinkStore
	publisher queue.EventPublisher
	logger    *zap.Logger
}

// NewDrinkHandler creates a new drink handler. A nil publisher discards events.
func NewDrinkHandler(store database.DrinkStore, publisher queue.EventPublisher, log *zap.Logger) *DrinkHandler {
	if publisher == nil {
		publisher = queue.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DrinkHandler{store: store, publisher: publisher, logger: log}
}

// RegisterRoutes registers the drink routes, each wrapped with its permission
func (h *DrinkHandler) RegisterRoutes(r *mux.Router, guard *middleware.ScopeGuard) {
	r.Handle("/drinks", guard.WithScope(PermListDrinks, h.ListDrinks)).Methods(http.MethodGet)
	r.Handle("/drinks-detail", guard.WithScope(PermDrinkDetails, h.ListDrinkDetails)).Methods(http.MethodGet)
	r.Handle("/drinks", guard.WithScope(PermCreateDrink, h.CreateDrink)).Methods(http.MethodPost)
	r.Handle("/drinks/{id:[0-9]+}", guard.WithScope(PermUpdateDrink, h.UpdateDrink)).Methods(http.MethodPatch)
	r.Handle("/drinks/{id:[0-9]+}", guard.WithScope(PermDeleteDrink, h.DeleteDrink)).Methods(http.MethodDelete)
}

// ListDrinks returns every drink in the short projection
func (h *DrinkHandler) ListDrinks(r *http.Request, _ *models.Claims) (response.Outcome, error) {
	drinks, err := h.store.FindAll(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]models.DrinkShort, 0, len(drinks))
	for _, d := range drinks {
		short, err := d.Short()
		if err != nil {
			return nil, &apierror.InternalError{Err: err}
		}
		out = append(out, short)
	}
	return response.List{Drinks: out}, nil
}

// ListDrinkDetails returns every drink in the long projection
func (h *DrinkHandler) ListDrinkDetails(r *http.Request, _ *models.Claims) (response.Outcome, error) {
	drinks, err := h.store.FindAll(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]models.DrinkLong, 0, len(drinks))
	for _, d := range drinks {
		long, err := d.Long()
		if err != nil {
			return nil, &apierror.InternalError{Err: err}
		}
		out = append(out, long)
	}
	return response.List{Drinks: out}, nil
}

// CreateDrink stores a new drink and returns its long projection
func (h *DrinkHandler) CreateDrink(r *http.Request, claims *models.Claims) (response.Outcome, error) {
	in, err := validation.ParseCreateDrink(r.Body)
	if err != nil {
		return nil, err
	}

	drink := &models.Drink{Title: in.Title, Recipe: in.Recipe}
	if err := h.store.Insert(r.Context(), drink); err != nil {
		return nil, err
	}

	h.logger.Info("drink_created",
		zap.Int64("drink_id", drink.ID),
		zap.String("title", logger.SanitizeTitle(drink.Title)),
		zap.String("subject", logger.SanitizeSubject(claims.Subject)),
	)
	h.publish(r.Context(), queue.EventDrinkCreated, drink, claims)
	return longItem(drink)
}

// UpdateDrink applies a partial update to an existing drink. The drink is
// looked up first so a missing id is a 404 before anything is written.
func (h *DrinkHandler) UpdateDrink(r *http.Request, claims *models.Claims) (response.Outcome, error) {
	id, err := drinkID(r)
	if err != nil {
		return nil, err
	}

	drink, err := h.find(r.Context(), id)
	if err != nil {
		return nil, err
	}

	patch, err := validation.ParseUpdateDrink(r.Body)
	if err != nil {
		return nil, err
	}

	// An empty title in the body is a no-op, not a request to clear it.
	if patch.Empty() {
		return longItem(drink)
	}
	if patch.Title != nil {
		drink.Title = *patch.Title
	}
	if patch.Recipe != nil {
		drink.Recipe = *patch.Recipe
	}

	if err := h.store.Update(r.Context(), drink); err != nil {
		return nil, notFound(err, id)
	}

	h.logger.Info("drink_updated",
		zap.Int64("drink_id", drink.ID),
		zap.String("subject", logger.SanitizeSubject(claims.Subject)),
	)
	h.publish(r.Context(), queue.EventDrinkUpdated, drink, claims)
	return longItem(drink)
}

// DeleteDrink removes an existing drink
func (h *DrinkHandler) DeleteDrink(r *http.Request, claims *models.Claims) (response.Outcome, error) {
	id, err := drinkID(r)
	if err != nil {
		return nil, err
	}

	drink, err := h.find(r.Context(), id)
	if err != nil {
		return nil, err
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		return nil, notFound(err, id)
	}

	h.logger.Info("drink_deleted",
		zap.Int64("drink_id", id),
		zap.String("subject", logger.SanitizeSubject(claims.Subject)),
	)
	h.publish(r.Context(), queue.EventDrinkDeleted, drink, claims)
	return response.Deleted{ID: id}, nil
}

func (h *DrinkHandler) find(ctx context.Context, id int64) (*models.Drink, error) {
	drink, err := h.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return drink, nil
}

// publish sends a change event. Failures are logged and never reach the client.
func (h *DrinkHandler) publish(ctx context.Context, eventType queue.EventType, drink *models.Drink, claims *models.Claims) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event := queue.NewDrinkEvent(eventType, drink, claims.Subject)
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("drink_event_publish_failed",
			zap.String("event_id", event.ID.String()),
			zap.String("routing_key", event.RoutingKey()),
			zap.Int64("drink_id", event.DrinkID),
			zap.Error(err),
		)
	}
}

func longItem(d *models.Drink) (response.Outcome, error) {
	long, err := d.Long()
	if err != nil {
		return nil, &apierror.InternalError{Err: err}
	}
	return response.Item{Drink: long}, nil
}

// drinkID reads the {id} path variable. The route pattern only admits
// digits; zero and out-of-range values are reported as not found.
func drinkID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apierror.NotFoundError{Resource: "drink", ID: raw}
	}
	return id, nil
}

func notFound(err error, id int64) error {
	if errors.Is(err, database.ErrNotFound) {
		return &apierror.NotFoundError{Resource: "drink", ID: id}
	}
	return err
}
