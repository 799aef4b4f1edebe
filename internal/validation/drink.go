package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
)

// MaxTitleLength is the longest title accepted, in characters
const MaxTitleLength = 120

// CreateDrink is a validated create request. Recipe is canonical JSON.
type CreateDrink struct {
	Title  string
	Recipe string
}

// DrinkPatch is a validated update request. A nil field leaves the stored
// value untouched.
type DrinkPatch struct {
	Title  *string
	Recipe *string
}

// Empty reports whether the patch changes nothing
func (p *DrinkPatch) Empty() bool {
	return p.Title == nil && p.Recipe == nil
}

type drinkBody struct {
	Title  *string         `json:"title"`
	Recipe json.RawMessage `json:"recipe"`
}

type recipeStep struct {
	Color string   `json:"color" validate:"notblank"`
	Name  string   `json:"name" validate:"notblank"`
	Parts *float64 `json:"parts" validate:"required,gte=0"`
}

type createInput struct {
	Title  string       `json:"title" validate:"notblank,max=120"`
	Recipe []recipeStep `json:"recipe" validate:"required,min=1,dive"`
}

type titleInput struct {
	Title string `json:"title" validate:"notblank,max=120"`
}

type recipeInput struct {
	Recipe []recipeStep `json:"recipe" validate:"required,min=1,dive"`
}

// ParseCreateDrink decodes and validates a create body. Undecodable JSON is a
// 400; a missing or empty title or an invalid recipe is a 422.
func ParseCreateDrink(r io.Reader) (*CreateDrink, error) {
	body, err := decodeBody(r)
	if err != nil {
		return nil, err
	}

	in := createInput{}
	if body.Title != nil {
		in.Title = SanitizeText(*body.Title)
	}
	if isPresent(body.Recipe) {
		steps, err := decodeRecipe(body.Recipe)
		if err != nil {
			return nil, err
		}
		in.Recipe = steps
	}
	if err := Struct(in); err != nil {
		return nil, err
	}

	recipe, err := CanonicalRecipe(toIngredients(in.Recipe))
	if err != nil {
		return nil, &apierror.InternalError{Err: err}
	}
	return &CreateDrink{Title: in.Title, Recipe: recipe}, nil
}

// ParseUpdateDrink decodes and validates an update body. An absent field, an
// empty title and a null recipe all leave the stored value unchanged.
func ParseUpdateDrink(r io.Reader) (*DrinkPatch, error) {
	body, err := decodeBody(r)
	if err != nil {
		return nil, err
	}

	patch := &DrinkPatch{}

	// An empty title means "unchanged", not "clear the title".
	if body.Title != nil {
		if title := SanitizeText(*body.Title); title != "" {
			if err := Struct(titleInput{Title: title}); err != nil {
				return nil, err
			}
			patch.Title = &title
		}
	}

	if isPresent(body.Recipe) {
		steps, err := decodeRecipe(body.Recipe)
		if err != nil {
			return nil, err
		}
		if err := Struct(recipeInput{Recipe: steps}); err != nil {
			return nil, err
		}
		recipe, err := CanonicalRecipe(toIngredients(steps))
		if err != nil {
			return nil, &apierror.InternalError{Err: err}
		}
		patch.Recipe = &recipe
	}

	return patch, nil
}

// CanonicalRecipe serialises ingredients with the stable key order color,
// name, parts. Equal recipes always produce identical strings.
func CanonicalRecipe(ingredients []models.Ingredient) (string, error) {
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	b, err := json.Marshal(ingredients)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}
	return string(b), nil
}

func decodeBody(r io.Reader) (*drinkBody, error) {
	if r == nil {
		return nil, apierror.BadRequest("request body is required")
	}
	dec := json.NewDecoder(r)

	var body drinkBody
	if err := dec.Decode(&body); err != nil {
		return nil, decodeError(err)
	}
	if dec.More() {
		return nil, apierror.BadRequest("request body must contain a single JSON object")
	}
	return &body, nil
}

func decodeError(err error) error {
	var maxBytes *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		return apierror.BadRequest("request body is required")
	case errors.As(err, &maxBytes):
		return apierror.BadRequest("request body is too large")
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return apierror.BadRequest(fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return apierror.BadRequest("request body must be a JSON object")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apierror.BadRequest("request body is not valid JSON")
	default:
		return apierror.BadRequest("request body could not be decoded")
	}
}

// decodeRecipe accepts a list of steps or a single step object
func decodeRecipe(raw json.RawMessage) ([]recipeStep, error) {
	trimmed := bytes.TrimSpace(raw)

	var steps []recipeStep
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &steps); err != nil {
			return nil, recipeDecodeError(err)
		}
	case '{':
		var step recipeStep
		if err := json.Unmarshal(trimmed, &step); err != nil {
			return nil, recipeDecodeError(err)
		}
		steps = []recipeStep{step}
	default:
		return nil, apierror.BadRequest("recipe must be an array of steps")
	}

	for i := range steps {
		steps[i].Color = SanitizeText(steps[i].Color)
		steps[i].Name = SanitizeText(steps[i].Name)
	}
	return steps, nil
}

func recipeDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierror.BadRequest(fmt.Sprintf("recipe.%s has the wrong type", typeErr.Field))
	}
	return apierror.BadRequest("recipe is not valid")
}

// isPresent reports whether a raw field was sent with a non-null value
func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func toIngredients(steps []recipeStep) []models.Ingredient {
	out := make([]models.Ingredient, 0, len(steps))
	for _, s := range steps {
		var parts float64
		if s.Parts != nil {
			parts = *s.Parts
		}
		out = append(out, models.Ingredient{Color: s.Color, Name: s.Name, Parts: parts})
	}
	return out
}
