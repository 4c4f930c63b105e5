package recipes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/attributes"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"gorm.io/gorm"
)

// Price limits match the decimal(5,2) column.
const (
	priceDecimalPlaces  = 2
	priceMaxWholeDigits = 3
)

var maxPrice = decimal.New(1, priceMaxWholeDigits)

// RecipeRequest is the body for create and full update
type RecipeRequest struct {
	Title       string           `json:"title" binding:"required,notblank,max=255"`
	TimeMinutes *int             `json:"time_minutes" binding:"required,gte=0"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Link        string           `json:"link" binding:"omitempty,max=255"`
	Tags        []uint           `json:"tags"`
	Ingredients []uint           `json:"ingredients"`
}

// PatchRecipeRequest is the body for partial update. Omitted fields keep
// their current value.
type PatchRecipeRequest struct {
	Title       *string          `json:"title" binding:"omitempty,notblank,max=255"`
	TimeMinutes *int             `json:"time_minutes" binding:"omitempty,gte=0"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link" binding:"omitempty,max=255"`
	Tags        *[]uint          `json:"tags"`
	Ingredients *[]uint          `json:"ingredients"`
}

// NamedResponse is a tag or ingredient nested in a recipe detail
type NamedResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// RecipeResponse represents a recipe in list and write responses
type RecipeResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Tags        []uint  `json:"tags"`
	Ingredients []uint  `json:"ingredients"`
	Image       *string `json:"image"`
}

// RecipeDetailResponse represents a single recipe with nested tags and ingredients
type RecipeDetailResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       string          `json:"price"`
	Link        string          `json:"link"`
	Tags        []NamedResponse `json:"tags"`
	Ingredients []NamedResponse `json:"ingredients"`
	Image       *string         `json:"image"`
}

// ImageResponse is returned by the image upload endpoint
type ImageResponse struct {
	ID    uint   `json:"id"`
	Image string `json:"image"`
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(priceDecimalPlaces)
}

func imageURL(store storage.Storage, key string) *string {
	if key == "" || store == nil {
		return nil
	}
	u := store.URL(key)
	return &u
}

func recipeToResponse(r models.Recipe, store storage.Storage) RecipeResponse {
	tagIDs := make([]uint, len(r.Tags))
	for i, t := range r.Tags {
		tagIDs[i] = t.ID
	}
	ingredientIDs := make([]uint, len(r.Ingredients))
	for i, in := range r.Ingredients {
		ingredientIDs[i] = in.ID
	}

	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       formatPrice(r.Price),
		Link:        r.Link,
		Tags:        tagIDs,
		Ingredients: ingredientIDs,
		Image:       imageURL(store, r.Image),
	}
}

func recipeToDetailResponse(r models.Recipe, store storage.Storage) RecipeDetailResponse {
	tags := make([]NamedResponse, len(r.Tags))
	for i, t := range r.Tags {
		tags[i] = NamedResponse{ID: t.ID, Name: t.Name}
	}
	ingredients := make([]NamedResponse, len(r.Ingredients))
	for i, in := range r.Ingredients {
		ingredients[i] = NamedResponse{ID: in.ID, Name: in.Name}
	}

	return RecipeDetailResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       formatPrice(r.Price),
		Link:        r.Link,
		Tags:        tags,
		Ingredients: ingredients,
		Image:       imageURL(store, r.Image),
	}
}

// validatePrice checks a price fits decimal(5,2).
func validatePrice(price decimal.Decimal, fields httperr.Fields) {
	switch {
	case !price.Round(priceDecimalPlaces).Equal(price):
		fields["price"] = fmt.Sprintf("Ensure that there are no more than %d decimal places.", priceDecimalPlaces)
	case price.Abs().GreaterThanOrEqual(maxPrice):
		fields["price"] = fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", priceMaxWholeDigits)
	}
}

// uniqueIDs drops repeated ids, keeping the first occurrence order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveOwned loads the rows of T with the given ids owned by userID. The
// first id that does not exist or belongs to another user is reported on
// field and nil rows are returned.
func resolveOwned[T any, PT attributes.Model[T]](db *gorm.DB, userID uint, ids []uint, field string, fields httperr.Fields) ([]T, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []T{}, nil
	}

	var rows []T
	if err := db.Where("user_id = ? AND id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == len(ids) {
		return rows, nil
	}

	found := make(map[uint]struct{}, len(rows))
	for i := range rows {
		found[PT(&rows[i]).AttributeID()] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			fields[field] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
			break
		}
	}
	return nil, nil
}

// parseIDList parses a comma separated list of ids from a query parameter.
func parseIDList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
