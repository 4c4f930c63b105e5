package recipes

import (
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
)

// ImageField is the multipart form field carrying the upload.
const ImageField = "image"

// UploadImage stores an image for a recipe and replaces any previous one
// @Summary Upload a recipe image
// @Tags recipes
// @Accept multipart/form-data
// @Produce json
// @Security TokenAuth
// @Param id path int true "Recipe ID"
// @Param image formData file true "Image file"
// @Success 200 {object} ImageResponse
// @Failure 400 {object} map[string]interface{} "Not an image"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipe/recipes/{id}/upload-image [post]
func (h *Handler) UploadImage(c *gin.Context, p auth.Principal) {
	recipe, ok := h.getOwnedRecipe(c, p, false)
	if !ok {
		return
	}

	header, err := c.FormFile(ImageField)
	if err != nil {
		httperr.Validation(c, httperr.Fields{ImageField: "No file was submitted."})
		return
	}

	file, err := header.Open()
	if err != nil {
		httperr.Internal(c, err, "Failed to read upload")
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil || !isRasterImage(mtype) {
		httperr.Validation(c, httperr.Fields{ImageField: "Upload a valid image. The file you uploaded was either not an image or a corrupted image."})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		httperr.Internal(c, err, "Failed to read upload")
		return
	}

	ctx := c.Request.Context()
	key := storage.RecipeImagePath(header.Filename)
	if err := h.store.Save(ctx, key, file, mtype.String()); err != nil {
		httperr.Internal(c, err, "Failed to store image")
		return
	}

	previous := recipe.Image
	if err := h.db.WithContext(ctx).Model(recipe).Update("image", key).Error; err != nil {
		if delErr := h.store.Delete(ctx, key); delErr != nil {
			_ = c.Error(delErr)
		}
		httperr.Internal(c, err, "Failed to update recipe")
		return
	}

	if previous != "" && previous != key {
		if err := h.store.Delete(ctx, previous); err != nil {
			_ = c.Error(err)
		}
	}

	h.observer.ImageStored(h.store.Backend())
	c.JSON(http.StatusOK, ImageResponse{ID: recipe.ID, Image: h.store.URL(key)})
}

// isRasterImage accepts image types other than SVG, which is markup.
func isRasterImage(m *mimetype.MIME) bool {
	return strings.HasPrefix(m.String(), "image/") && !m.Is("image/svg+xml")
}
