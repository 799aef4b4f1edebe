package queue

import (
	"time"

	"github.com/benvon/drinks-api/internal/models"
	"github.com/google/uuid"
)

// EventType is the kind of change a DrinkEvent records
type EventType string

const (
	// EventDrinkCreated is published after a drink is inserted
	EventDrinkCreated EventType = "created"
	// EventDrinkUpdated is published after a drink is changed
	EventDrinkUpdated EventType = "updated"
	// EventDrinkDeleted is published after a drink is removed
	EventDrinkDeleted EventType = "deleted"
)

// DrinkEvent is a change notification for a single drink
type DrinkEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	DrinkID    int64     `json:"drink_id"`
	Title      string    `json:"title,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewDrinkEvent creates an event for drink, attributed to the token subject
func NewDrinkEvent(eventType EventType, drink *models.Drink, subject string) *DrinkEvent {
	e := &DrinkEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
	}
	if drink != nil {
		e.DrinkID = drink.ID
		e.Title = drink.Title
	}
	return e
}

// RoutingKey returns the topic routing key, e.g. "drink.created"
func (e *DrinkEvent) RoutingKey() string {
	return "drink." + string(e.Type)
}
