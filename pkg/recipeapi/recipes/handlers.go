// Package recipes serves the caller's recipes: list with filters, create,
// retrieve, full and partial update, delete and image upload.
package recipes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"gorm.io/gorm"
)

// Path is the collection route
const Path = "/recipe/recipes"

// Handler handles recipe-related requests
type Handler struct {
	db       *gorm.DB
	store    storage.Storage
	observer metrics.Observer
}

// NewHandler creates a new recipes handler
func NewHandler(db *gorm.DB, store storage.Storage) *Handler {
	return &Handler{db: db, store: store, observer: metrics.Nop{}}
}

// SetObserver routes creation and upload events to o.
func (h *Handler) SetObserver(o metrics.Observer) {
	h.observer = o
}

// getOwnedRecipe loads a recipe by the :id param, scoped to the principal.
// A recipe owned by someone else is reported exactly like a missing one.
func (h *Handler) getOwnedRecipe(c *gin.Context, p auth.Principal, preload bool) (*models.Recipe, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		httperr.NotFound(c, "Recipe")
		return nil, false
	}

	query := h.db.WithContext(c.Request.Context())
	if preload {
		query = query.Preload("Tags").Preload("Ingredients")
	}

	var recipe models.Recipe
	if err := query.Where("user_id = ?", p.UserID).First(&recipe, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httperr.NotFound(c, "Recipe")
		} else {
			httperr.Internal(c, err, "Failed to fetch recipe")
		}
		return nil, false
	}

	return &recipe, true
}

// List returns the caller's recipes, newest first
// @Summary List recipes
// @Description List the caller's recipes. tags and ingredients take comma separated ids.
// @Tags recipes
// @Produce json
// @Security TokenAuth
// @Param tags query string false "Comma separated tag ids"
// @Param ingredients query string false "Comma separated ingredient ids"
// @Success 200 {array} RecipeResponse
// @Failure 400 {object} map[string]interface{} "Invalid filter"
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /recipe/recipes [get]
func (h *Handler) List(c *gin.Context, p auth.Principal) {
	query := h.db.WithContext(c.Request.Context()).
		Preload("Tags").
		Preload("Ingredients").
		Where("user_id = ?", p.UserID)

	filters := []struct {
		param  string
		table  string
		column string
	}{
		{"tags", "recipe_tags", "tag_id"},
		{"ingredients", "recipe_ingredients", "ingredient_id"},
	}
	for _, f := range filters {
		raw := c.Query(f.param)
		if raw == "" {
			continue
		}
		ids, err := parseIDList(raw)
		if err != nil {
			httperr.Validation(c, httperr.Fields{f.param: "Enter a comma separated list of ids."})
			return
		}
		if len(ids) == 0 {
			continue
		}
		query = query.Where("id IN (SELECT recipe_id FROM "+f.table+" WHERE "+f.column+" IN ?)", ids)
	}

	var recipes []models.Recipe
	if err := query.Order("id DESC").Find(&recipes).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch recipes")
		return
	}

	response := make([]RecipeResponse, len(recipes))
	for i, r := range recipes {
		response[i] = recipeToResponse(r, h.store)
	}

	c.JSON(http.StatusOK, response)
}

// Get returns a single recipe with nested tags and ingredients
// @Summary Get a recipe
// @Tags recipes
// @Produce json
// @Security TokenAuth
// @Param id path int true "Recipe ID"
// @Success 200 {object} RecipeDetailResponse
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipe/recipes/{id} [get]
func (h *Handler) Get(c *gin.Context, p auth.Principal) {
	recipe, ok := h.getOwnedRecipe(c, p, true)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, recipeToDetailResponse(*recipe, h.store))
}

// Create creates a recipe owned by the caller
// @Summary Create a recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param request body RecipeRequest true "Recipe"
// @Success 201 {object} RecipeResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /recipe/recipes [post]
func (h *Handler) Create(c *gin.Context, p auth.Principal) {
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

	recipe := models.Recipe{
		UserID:      p.UserID,
		Title:       strings.TrimSpace(req.Title),
		TimeMinutes: *req.TimeMinutes,
		Price:       *req.Price,
		Link:        strings.TrimSpace(req.Link),
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		tags, ingredients, err := resolveRelations(tx, p.UserID, req.Tags, req.Ingredients, fields)
		if err != nil || len(fields) > 0 {
			return err
		}

		if err := tx.Omit("Tags", "Ingredients").Create(&recipe).Error; err != nil {
			return err
		}
		return replaceRelations(tx, &recipe, tags, ingredients)
	})
	if len(fields) > 0 {
		httperr.Validation(c, fields)
		return
	}
	if err != nil {
		httperr.Internal(c, err, "Failed to create recipe")
		return
	}

	h.observer.ResourceCreated("recipe")
	c.JSON(http.StatusCreated, recipeToResponse(recipe, h.store))
}

// Delete deletes a recipe and its image
// @Summary Delete a recipe
// @Tags recipes
// @Security TokenAuth
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipe/recipes/{id} [delete]
func (h *Handler) Delete(c *gin.Context, p auth.Principal) {
	recipe, ok := h.getOwnedRecipe(c, p, false)
	if !ok {
		return
	}

	if err := DeleteRecipe(c, h.db, h.store, recipe); err != nil {
		httperr.Internal(c, err, "Failed to delete recipe")
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteRecipe removes recipe with its tag and ingredient links, then its
// stored image. A failure to remove the image is recorded on c only.
func DeleteRecipe(c *gin.Context, db *gorm.DB, store storage.Storage, recipe *models.Recipe) error {
	err := db.WithContext(c.Request.Context()).Select("Tags", "Ingredients").Delete(recipe).Error
	if err != nil {
		return err
	}

	if recipe.Image != "" && store != nil {
		if err := store.Delete(c.Request.Context(), recipe.Image); err != nil {
			_ = c.Error(err)
		}
	}
	return nil
}

// RegisterRoutes registers recipe routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(Path, auth.WithPrincipal(h.List))
	rg.POST(Path, auth.WithPrincipal(h.Create))
	rg.GET(Path+"/:id", auth.WithPrincipal(h.Get))
	rg.PUT(Path+"/:id", auth.WithPrincipal(h.Update))
	rg.PATCH(Path+"/:id", auth.WithPrincipal(h.PartialUpdate))
	rg.DELETE(Path+"/:id", auth.WithPrincipal(h.Delete))
	rg.POST(Path+"/:id/upload-image", auth.WithPrincipal(h.UploadImage))
}
