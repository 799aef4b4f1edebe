package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ingredient is one step of a drink recipe. Field order fixes the key order
// of the canonical stored form: color, name, parts.
type Ingredient struct {
	Color string  `json:"color"`
	Name  string  `json:"name"`
	Parts float64 `json:"parts"`
}

// ShortIngredient is an ingredient without its name, used by the short projection
type ShortIngredient struct {
	Color string  `json:"color"`
	Parts float64 `json:"parts"`
}

// Drink is a stored drink record. Recipe holds the canonical JSON of the
// ingredient list exactly as it was handed to storage.
type Drink struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Recipe    string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// DrinkShort is the short projection returned by GET /drinks
type DrinkShort struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// DrinkLong is the long projection returned by GET /drinks-detail and by writes
type DrinkLong struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Ingredients decodes the stored recipe
func (d *Drink) Ingredients() ([]Ingredient, error) {
	if d.Recipe == "" {
		return []Ingredient{}, nil
	}
	var ingredients []Ingredient
	if err := json.Unmarshal([]byte(d.Recipe), &ingredients); err != nil {
		return nil, fmt.Errorf("failed to decode recipe for drink %d: %w", d.ID, err)
	}
	if ingredients == nil {
		ingredients = []Ingredient{}
	}
	return ingredients, nil
}

// Short returns the short projection of the drink
func (d *Drink) Short() (DrinkShort, error) {
	ingredients, err := d.Ingredients()
	if err != nil {
		return DrinkShort{}, err
	}
	short := make([]ShortIngredient, 0, len(ingredients))
	for _, in := range ingredients {
		short = append(short, ShortIngredient{Color: in.Color, Parts: in.Parts})
	}
	return DrinkShort{ID: d.ID, Title: d.Title, Recipe: short}, nil
}

// Long returns the long projection of the drink
func (d *Drink) Long() (DrinkLong, error) {
	ingredients, err := d.Ingredients()
	if err != nil {
		return DrinkLong{}, err
	}
	return DrinkLong{ID: d.ID, Title: d.Title, Recipe: ingredients}, nil
}
