// Package attributes implements the list and create endpoints shared by
// every user-owned recipe attribute (tags and ingredients).
package attributes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"gorm.io/gorm"
)

// Attribute is implemented by models that are owned by a user, have a
// name and can be linked to recipes.
type Attribute interface {
	AttributeID() uint
	AttributeName() string
	Assign(userID uint, name string)
}

// Model constrains PT to a pointer to T that implements Attribute.
type Model[T any] interface {
	*T
	Attribute
}

// Config describes how an attribute is linked to recipes.
type Config struct {
	// Resource is the singular display name, e.g. "Tag".
	Resource string
	// JoinTable is the many-to-many table between recipes and the attribute.
	JoinTable string
	// JoinColumn is the attribute's foreign key column in JoinTable.
	JoinColumn string
}

// Handler serves list and create for one attribute type
type Handler[T any, PT Model[T]] struct {
	db       *gorm.DB
	cfg      Config
	observer metrics.Observer
}

// NewHandler creates a new attribute handler
func NewHandler[T any, PT Model[T]](db *gorm.DB, cfg Config) *Handler[T, PT] {
	return &Handler[T, PT]{db: db, cfg: cfg, observer: metrics.Nop{}}
}

// SetObserver routes creation events to o.
func (h *Handler[T, PT]) SetObserver(o metrics.Observer) {
	h.observer = o
}

// Response represents an attribute in API responses
type Response struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CreateRequest represents a request to create an attribute
type CreateRequest struct {
	Name string `json:"name" binding:"required,notblank,max=255"`
}

func toResponse[T any, PT Model[T]](v *T) Response {
	a := PT(v)
	return Response{ID: a.AttributeID(), Name: a.AttributeName()}
}

// IsTruthy reports whether a query flag is set ("1", "true" or "yes").
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// List returns the caller's attributes ordered by name descending. With
// assigned_only set, only attributes linked to at least one of the caller's
// recipes are returned, each once.
// @Summary List tags or ingredients
// @Description List the caller's tags or ingredients ordered by name descending
// @Tags attributes
// @Produce json
// @Security TokenAuth
// @Param assigned_only query string false "Only entries assigned to a recipe (1, true, yes)"
// @Success 200 {array} Response
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /recipe/tags [get]
// @Router /recipe/ingredients [get]
func (h *Handler[T, PT]) List(c *gin.Context, p auth.Principal) {
	query := h.db.WithContext(c.Request.Context()).Where("user_id = ?", p.UserID)

	if IsTruthy(c.Query("assigned_only")) {
		subquery := fmt.Sprintf(
			"SELECT %[1]s.%[2]s FROM %[1]s JOIN recipes ON recipes.id = %[1]s.recipe_id WHERE recipes.user_id = ?",
			h.cfg.JoinTable, h.cfg.JoinColumn,
		)
		query = query.Where("id IN ("+subquery+")", p.UserID)
	}

	var items []T
	if err := query.Order("name DESC").Order("id DESC").Find(&items).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch "+strings.ToLower(h.cfg.Resource)+"s")
		return
	}

	response := make([]Response, len(items))
	for i := range items {
		response[i] = toResponse[T, PT](&items[i])
	}

	c.JSON(http.StatusOK, response)
}

// Create stores a new attribute owned by the caller
// @Summary Create a tag or ingredient
// @Tags attributes
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param request body CreateRequest true "Name"
// @Success 201 {object} Response
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /recipe/tags [post]
// @Router /recipe/ingredients [post]
func (h *Handler[T, PT]) Create(c *gin.Context, p auth.Principal) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	item := new(T)
	PT(item).Assign(p.UserID, strings.TrimSpace(req.Name))

	if err := h.db.WithContext(c.Request.Context()).Create(item).Error; err != nil {
		httperr.Internal(c, err, "Failed to create "+strings.ToLower(h.cfg.Resource))
		return
	}

	h.observer.ResourceCreated(strings.ToLower(h.cfg.Resource))
	c.JSON(http.StatusCreated, toResponse[T, PT](item))
}

// RegisterRoutes registers list and create under path
func (h *Handler[T, PT]) RegisterRoutes(rg *gin.RouterGroup, path string) {
	rg.GET(path, auth.WithPrincipal(h.List))
	rg.POST(path, auth.WithPrincipal(h.Create))
}
