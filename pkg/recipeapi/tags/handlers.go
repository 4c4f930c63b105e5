// Package tags serves the caller's recipe tags.
package tags

import (
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/attributes"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

// Path is the route the tag endpoints are served under
const Path = "/recipe/tags"

// Handler handles tag-related requests
type Handler = attributes.Handler[models.Tag, *models.Tag]

// TagResponse represents a tag in API responses
type TagResponse = attributes.Response

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return attributes.NewHandler[models.Tag, *models.Tag](db, attributes.Config{
		Resource:   "Tag",
		JoinTable:  "recipe_tags",
		JoinColumn: "tag_id",
	})
}
