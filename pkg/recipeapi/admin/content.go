package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/recipes"
	"gorm.io/gorm"
)

// RecipeResponse is a recipe row in the admin listing
type RecipeResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Image       *string `json:"image"`
	OwnerID     uint    `json:"owner_id"`
	OwnerEmail  string  `json:"owner_email"`
	CreatedAt   string  `json:"created_at"`
}

// AttributeResponse is a tag or ingredient row in the admin listing
type AttributeResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	OwnerID    uint   `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
}

// ownerScope applies the optional owner filter shared by all listings.
func ownerScope(c *gin.Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner := c.Query("owner"); owner != "" {
			return db.Where("user_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
				Model(&models.User{}).Select("id").Where("LOWER(email) = LOWER(?)", owner))
		}
		return db
	}
}

// ListRecipes returns recipes of every owner
// @Summary List all recipes
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param q query string false "Search title"
// @Param owner query string false "Owner email"
// @Success 200 {array} RecipeResponse
// @Router /admin/recipes [get]
func (h *Handler) ListRecipes(c *gin.Context) {
	var list []models.Recipe

	query := h.db.WithContext(c.Request.Context()).Preload("User").Scopes(ownerScope(c)).Order("id DESC")
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	if err := query.Find(&list).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch recipes")
		return
	}

	responses := make([]RecipeResponse, len(list))
	for i, r := range list {
		var image *string
		if r.Image != "" {
			url := h.store.URL(r.Image)
			image = &url
		}
		responses[i] = RecipeResponse{
			ID:          r.ID,
			Title:       r.Title,
			TimeMinutes: r.TimeMinutes,
			Price:       r.Price.StringFixed(2),
			Link:        r.Link,
			Image:       image,
			OwnerID:     r.UserID,
			OwnerEmail:  r.User.Email,
			CreatedAt:   r.CreatedAt.UTC().Format(timeFormat),
		}
	}

	c.JSON(http.StatusOK, responses)
}

// DeleteRecipe removes any recipe regardless of owner
// @Summary Delete a recipe
// @Tags admin
// @Security AdminAuth
// @Param id path int true "Recipe ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Not found"
// @Router /admin/recipes/{id} [delete]
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var recipe models.Recipe
	if err := h.db.WithContext(c.Request.Context()).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httperr.NotFound(c, "Recipe")
		} else {
			httperr.Internal(c, err, "Failed to fetch recipe")
		}
		return
	}

	if err := recipes.DeleteRecipe(c, h.db, h.store, &recipe); err != nil {
		httperr.Internal(c, err, "Failed to delete recipe")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted successfully"})
}

// ListTags returns tags of every owner
// @Summary List all tags
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param q query string false "Search name"
// @Param owner query string false "Owner email"
// @Success 200 {array} AttributeResponse
// @Router /admin/tags [get]
func (h *Handler) ListTags(c *gin.Context) {
	var list []models.Tag
	if err := h.attributeQuery(c).Find(&list).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch tags")
		return
	}

	responses := make([]AttributeResponse, len(list))
	for i, t := range list {
		responses[i] = AttributeResponse{ID: t.ID, Name: t.Name, OwnerID: t.UserID, OwnerEmail: t.User.Email}
	}
	c.JSON(http.StatusOK, responses)
}

// ListIngredients returns ingredients of every owner
// @Summary List all ingredients
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param q query string false "Search name"
// @Param owner query string false "Owner email"
// @Success 200 {array} AttributeResponse
// @Router /admin/ingredients [get]
func (h *Handler) ListIngredients(c *gin.Context) {
	var list []models.Ingredient
	if err := h.attributeQuery(c).Find(&list).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch ingredients")
		return
	}

	responses := make([]AttributeResponse, len(list))
	for i, ing := range list {
		responses[i] = AttributeResponse{ID: ing.ID, Name: ing.Name, OwnerID: ing.UserID, OwnerEmail: ing.User.Email}
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) attributeQuery(c *gin.Context) *gorm.DB {
	query := h.db.WithContext(c.Request.Context()).Preload("User").Scopes(ownerScope(c)).Order("name ASC").Order("id ASC")
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	return query
}
