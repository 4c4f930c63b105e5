package recipes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

// resolveRelations loads the caller's tags and ingredients by id. A nil id
// slice resolves to nil rows, meaning "leave unchanged" to replaceRelations.
func resolveRelations(tx *gorm.DB, userID uint, tagIDs, ingredientIDs []uint, fields httperr.Fields) ([]models.Tag, []models.Ingredient, error) {
	var (
		tags        []models.Tag
		ingredients []models.Ingredient
		err         error
	)
	if tagIDs != nil {
		tags, err = resolveOwned[models.Tag](tx, userID, tagIDs, "tags", fields)
		if err != nil {
			return nil, nil, err
		}
	}
	if ingredientIDs != nil {
		ingredients, err = resolveOwned[models.Ingredient](tx, userID, ingredientIDs, "ingredients", fields)
		if err != nil {
			return nil, nil, err
		}
	}
	return tags, ingredients, nil
}

// replaceRelations sets the recipe's tags and ingredients. A nil slice
// leaves that relation untouched, an empty one clears it.
func replaceRelations(tx *gorm.DB, recipe *models.Recipe, tags []models.Tag, ingredients []models.Ingredient) error {
	if tags != nil {
		if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
			return err
		}
		recipe.Tags = tags
	}
	if ingredients != nil {
		if err := tx.Model(recipe).Association("Ingredients").Replace(ingredients); err != nil {
			return err
		}
		recipe.Ingredients = ingredients
	}
	return nil
}

// orEmpty turns an omitted id list into an explicit empty one.
func orEmpty(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}

// Update replaces a recipe. Omitted tags and ingredients are cleared and
// an omitted link is reset.
// @Summary Replace a recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param id path int true "Recipe ID"
// @Param request body RecipeRequest true "Recipe"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipe/recipes/{id} [put]
func (h *Handler) Update(c *gin.Context, p auth.Principal) {
	recipe, ok := h.getOwnedRecipe(c, p, false)
	if !ok {
		return
	}

	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	fields := httperr.Fields{}
	validatePrice(*req.Price, fields)
	if len(fields) > 0 {
		httperr.Validation(c, fields)
		return
	}

	changes := map[string]interface{}{
		"title":        strings.TrimSpace(req.Title),
		"time_minutes": *req.TimeMinutes,
		"price":        *req.Price,
		"link":         strings.TrimSpace(req.Link),
	}

	h.save(c, p, recipe, changes, orEmpty(req.Tags), orEmpty(req.Ingredients), fields)
}

// PartialUpdate changes only the supplied fields of a recipe
// @Summary Update a recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param id path int true "Recipe ID"
// @Param request body PatchRecipeRequest true "Fields to change"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipe/recipes/{id} [patch]
func (h *Handler) PartialUpdate(c *gin.Context, p auth.Principal) {
	recipe, ok := h.getOwnedRecipe(c, p, false)
	if !ok {
		return
	}

	var req PatchRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	fields := httperr.Fields{}
	changes := map[string]interface{}{}
	if req.Title != nil {
		changes["title"] = strings.TrimSpace(*req.Title)
	}
	if req.TimeMinutes != nil {
		changes["time_minutes"] = *req.TimeMinutes
	}
	if req.Price != nil {
		validatePrice(*req.Price, fields)
		changes["price"] = *req.Price
	}
	if req.Link != nil {
		changes["link"] = strings.TrimSpace(*req.Link)
	}
	if len(fields) > 0 {
		httperr.Validation(c, fields)
		return
	}

	var tagIDs, ingredientIDs []uint
	if req.Tags != nil {
		tagIDs = orEmpty(*req.Tags)
	}
	if req.Ingredients != nil {
		ingredientIDs = orEmpty(*req.Ingredients)
	}

	h.save(c, p, recipe, changes, tagIDs, ingredientIDs, fields)
}

// save applies column changes and relation replacements in one transaction
// and writes the updated recipe.
func (h *Handler) save(c *gin.Context, p auth.Principal, recipe *models.Recipe, changes map[string]interface{}, tagIDs, ingredientIDs []uint, fields httperr.Fields) {
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		tags, ingredients, err := resolveRelations(tx, p.UserID, tagIDs, ingredientIDs, fields)
		if err != nil || len(fields) > 0 {
			return err
		}

		if len(changes) > 0 {
			if err := tx.Model(recipe).Omit("Tags", "Ingredients").Updates(changes).Error; err != nil {
				return err
			}
		}
		return replaceRelations(tx, recipe, tags, ingredients)
	})
	if len(fields) > 0 {
		httperr.Validation(c, fields)
		return
	}
	if err != nil {
		httperr.Internal(c, err, "Failed to update recipe")
		return
	}

	var updated models.Recipe
	if err := h.db.WithContext(c.Request.Context()).Preload("Tags").Preload("Ingredients").First(&updated, recipe.ID).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch recipe")
		return
	}

	c.JSON(http.StatusOK, recipeToResponse(updated, h.store))
}
