package ingredients

import (
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/attributes"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

const Path = "/recipe/ingredients"

type Handler = attributes.Handler[models.Ingredient, *models.Ingredient]

// IngredientResponse represents an ingredient in API responses
type IngredientResponse = attributes.Response

// NewHandler creates a new ingredients handler
func NewHandler(db *gorm.DB) *Handler {
	return attributes.NewHandler[models.Ingredient, *models.Ingredient](db, attributes.Config{
		Resource:   "Ingredient",
		JoinTable:  "recipe_ingredients",
		JoinColumn: "ingredient_id",
	})
}
